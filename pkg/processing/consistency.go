package processing

import (
	"gonum.org/v1/gonum/stat"
)

// ConsistencyDivisor converts lap time jitter (population sigma, ms) into
// score penalty: 1s of jitter costs 20 points, 5s wipes the score.
const ConsistencyDivisor = 50.0

// ConsistencyScore summarizes the repeatability of a set of lap times as a
// value in [0,100]. Fewer than two laps yield 100: insufficient data is
// treated as perfect consistency, not as an error.
func ConsistencyScore(lapTimesMs []int) float64 {
	if len(lapTimesMs) < 2 {
		return 100
	}
	xs := make([]float64, len(lapTimesMs))
	for i, t := range lapTimesMs {
		xs[i] = float64(t)
	}
	sigma := stat.PopStdDev(xs, nil)
	score := 100 - sigma/ConsistencyDivisor
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
