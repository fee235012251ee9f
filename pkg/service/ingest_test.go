package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitwall-sim/pitwall/pkg/model"
)

func TestPairLaps(t *testing.T) {
	official := []model.OfficialLap{
		{LapNo: 1, LapTimeMs: 91000, SectorsMs: []int{30000, 31000, 30000}, Valid: true},
		{LapNo: 2, LapTimeMs: 95000, Valid: false},
		{LapNo: 3, LapTimeMs: 90500, Valid: true},
	}
	traces := map[int][]model.TelemetrySample{
		0: {{OffsetMs: 0, Speed: 180}},
		2: {{OffsetMs: 0, Speed: 190}},
	}

	laps := PairLaps(official, traces)
	require.Len(t, laps, 3)

	assert.Equal(t, 0, laps[0].LapNo)
	assert.Equal(t, 91000, laps[0].LapTimeMs)
	assert.Len(t, laps[0].Trace, 1)

	// no buffer for the second lap: official result stands, trace stays nil
	assert.False(t, laps[1].Valid)
	assert.Nil(t, laps[1].Trace)

	assert.True(t, laps[2].Valid)
	assert.InDelta(t, 190.0, laps[2].Trace[0].Speed, 0.001)
}

func TestPairLapsEmptySession(t *testing.T) {
	assert.Empty(t, PairLaps(nil, nil))
}

func TestBestLap(t *testing.T) {
	official := []model.OfficialLap{
		{LapTimeMs: 91000, Valid: true},
		{LapTimeMs: 89000, Valid: false}, // fastest but invalid
		{LapTimeMs: 90500, Valid: true},
		{LapTimeMs: 0, Valid: true}, // no time recorded
	}
	best, ok := BestLap(official)
	require.True(t, ok)
	assert.Equal(t, 90500, best)
}

func TestBestLapNoValidLap(t *testing.T) {
	_, ok := BestLap([]model.OfficialLap{{LapTimeMs: 91000, Valid: false}})
	assert.False(t, ok)

	_, ok = BestLap(nil)
	assert.False(t, ok)
}
