package processing

import (
	"errors"

	"github.com/samber/lo"

	"github.com/pitwall-sim/pitwall/pkg/model"
)

var ErrNoValidLaps = errors.New("no valid laps with sector data")

// IdealLap synthesizes the best possible lap time (ms) by summing the
// minimum observed time of each sector across the given laps. Only valid
// laps participate; the sector count is taken from the first valid lap
// with splits, laps reporting a different count are skipped. A lap with a
// missing split (<=0) is excluded from that sector's minimum only.
func IdealLap(laps []*model.DbLap) (int, error) {
	candidates := lo.Filter(laps, func(l *model.DbLap, _ int) bool {
		return l.Valid && len(l.SectorsMs) > 0
	})
	if len(candidates) == 0 {
		return 0, ErrNoValidLaps
	}
	numSectors := len(candidates[0].SectorsMs)
	sum := 0
	for s := range numSectors {
		best := 0
		for _, lap := range candidates {
			if len(lap.SectorsMs) != numSectors {
				continue
			}
			t := lap.SectorsMs[s]
			if t <= 0 {
				continue
			}
			if best == 0 || t < best {
				best = t
			}
		}
		if best == 0 {
			return 0, ErrNoValidLaps
		}
		sum += best
	}
	return sum, nil
}
