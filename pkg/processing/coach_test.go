//nolint:funlen,gocognit // ok for tests
package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitwall-sim/pitwall/pkg/model"
)

// traceWithSpeeds builds a trace with one sample per bucket; speeds
// overrides the base speed for selected buckets.
func traceWithSpeeds(base float64, speeds map[int]float64) []model.TelemetrySample {
	ret := make([]model.TelemetrySample, 0, numBuckets)
	for b := range numBuckets {
		speed := base
		if v, ok := speeds[b]; ok {
			speed = v
		}
		ret = append(ret, model.TelemetrySample{
			OffsetMs: b * 900,
			TrackPos: (float64(b) + 0.5) / numBuckets,
			Speed:    speed,
		})
	}
	return ret
}

func TestBucketSpeeds_Averaging(t *testing.T) {
	trace := []model.TelemetrySample{
		{TrackPos: 0.101, Speed: 100},
		{TrackPos: 0.105, Speed: 120},
		{TrackPos: 0.109, Speed: 140},
	}
	speeds := BucketSpeeds(trace)
	assert.InDelta(t, 120.0, speeds[10], 0.001)
}

func TestBucketSpeeds_Interpolation(t *testing.T) {
	trace := []model.TelemetrySample{
		{TrackPos: 0.105, Speed: 100},
		{TrackPos: 0.205, Speed: 200},
	}
	speeds := BucketSpeeds(trace)
	// between the two populated buckets: linear
	assert.InDelta(t, 150.0, speeds[15], 0.001)
	// before the first populated bucket: nearest value
	assert.InDelta(t, 100.0, speeds[3], 0.001)
	// after the last populated bucket: nearest value
	assert.InDelta(t, 200.0, speeds[70], 0.001)
}

func TestBucketSpeeds_EmptyTrace(t *testing.T) {
	speeds := BucketSpeeds(nil)
	for b := range speeds {
		assert.Zero(t, speeds[b])
	}
}

func TestBucketSpeeds_ClampsOutOfRangePositions(t *testing.T) {
	trace := []model.TelemetrySample{
		{TrackPos: -0.01, Speed: 50},
		{TrackPos: 1.0, Speed: 80},
	}
	speeds := BucketSpeeds(trace)
	assert.InDelta(t, 50.0, speeds[0], 0.001)
	assert.InDelta(t, 80.0, speeds[numBuckets-1], 0.001)
}

func TestCompareLaps_BrakingTooEarly(t *testing.T) {
	// ghost still carries 210 through bucket 40, subject already backed
	// off to 180 after 200 in bucket 39
	subject := traceWithSpeeds(200, map[int]float64{40: 180, 41: 185, 42: 200})
	reference := traceWithSpeeds(200, map[int]float64{39: 210, 40: 210, 41: 200})

	tips := CompareLaps(subject, reference)
	require.Len(t, tips, 1)
	assert.Equal(t, model.TipBraking, tips[0].Kind)
	assert.InDelta(t, 0.40, tips[0].TrackPos, 0.001)
	assert.InDelta(t, -30.0, tips[0].SpeedDelta, 0.001)
	assert.Equal(t, model.SeverityMedium, tips[0].Severity)
}

func TestCompareLaps_SlowExit(t *testing.T) {
	// both accelerate out of the corner, the ghost pulls away harder
	subject := traceWithSpeeds(200, map[int]float64{
		58: 100, 59: 100, 60: 110, 61: 200,
	})
	reference := traceWithSpeeds(200, map[int]float64{
		58: 100, 59: 100, 60: 130, 61: 200,
	})

	tips := CompareLaps(subject, reference)
	require.Len(t, tips, 1)
	assert.Equal(t, model.TipExit, tips[0].Kind)
	assert.InDelta(t, 0.60, tips[0].TrackPos, 0.001)
}

func TestCompareLaps_ApexSpeedLow(t *testing.T) {
	// both decelerating into the apex, subject markedly lower
	subject := traceWithSpeeds(200, map[int]float64{
		29: 110, 30: 85, 31: 200,
	})
	reference := traceWithSpeeds(200, map[int]float64{
		29: 120, 30: 105, 31: 200,
	})

	tips := CompareLaps(subject, reference)
	require.Len(t, tips, 1)
	assert.Equal(t, model.TipApex, tips[0].Kind)
	assert.InDelta(t, 0.30, tips[0].TrackPos, 0.001)
}

func TestCompareLaps_SuppressionWindow(t *testing.T) {
	// two braking deficits of one corner 4 buckets apart: only the first
	// within the window is reported, a later corner is reported again
	subject := traceWithSpeeds(200, map[int]float64{
		40: 180, 44: 175, 60: 180,
	})
	reference := traceWithSpeeds(200, map[int]float64{
		40: 210, 44: 205, 60: 210,
	})

	tips := CompareLaps(subject, reference)
	require.Len(t, tips, 2)
	positions := []float64{tips[0].TrackPos, tips[1].TrackPos}
	assert.Contains(t, positions, 0.40)
	assert.Contains(t, positions, 0.60)
}

func TestCompareLaps_TopKRanking(t *testing.T) {
	deficits := map[int]float64{}
	refSpeeds := map[int]float64{}
	// seven well-separated deficits of increasing size
	for i, b := range []int{10, 21, 32, 43, 54, 65, 76} {
		deficits[b] = 200 - float64(20+i*5)
		refSpeeds[b] = 200
	}
	subject := traceWithSpeeds(200, deficits)
	reference := traceWithSpeeds(200, refSpeeds)

	tips := CompareLaps(subject, reference)
	require.Len(t, tips, maxTips)
	for i := 1; i < len(tips); i++ {
		assert.GreaterOrEqual(t,
			-tips[i-1].SpeedDelta, -tips[i].SpeedDelta,
			"tips must be ranked by deficit size")
	}
}

func TestCompareLaps_NoSignificantDeficit(t *testing.T) {
	subject := traceWithSpeeds(200, map[int]float64{40: 190})
	reference := traceWithSpeeds(200, nil)
	assert.Empty(t, CompareLaps(subject, reference))
}

func TestCompareLaps_SelfComparisonYieldsNoTips(t *testing.T) {
	trace := traceWithSpeeds(200, map[int]float64{40: 120, 60: 90})
	assert.Empty(t, CompareLaps(trace, trace))
}

func TestPickReference(t *testing.T) {
	trace := []model.TelemetrySample{{Speed: 100, TrackPos: 0.5}}
	subject := &model.DbLap{ID: 1, LapTimeMs: 92000, Valid: true, Trace: trace}
	laps := []*model.DbLap{
		subject,
		{ID: 2, LapTimeMs: 91000, Valid: true, Trace: trace},
		{ID: 3, LapTimeMs: 90000, Valid: false, Trace: trace}, // invalid
		{ID: 4, LapTimeMs: 90500, Valid: true},                // no trace
	}
	assert.Equal(t, 2, PickReference(subject, laps).ID)
}

func TestPickReference_FallsBackToSubject(t *testing.T) {
	subject := &model.DbLap{ID: 1, LapTimeMs: 92000, Valid: true}
	assert.Same(t, subject, PickReference(subject, []*model.DbLap{subject}))
}
