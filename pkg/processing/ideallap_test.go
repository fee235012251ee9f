//nolint:funlen // ok for tests
package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitwall-sim/pitwall/pkg/model"
)

func lapWithSectors(timeMs int, valid bool, sectors ...int) *model.DbLap {
	return &model.DbLap{LapTimeMs: timeMs, Valid: valid, SectorsMs: sectors}
}

func TestIdealLap_SectorMinima(t *testing.T) {
	laps := []*model.DbLap{
		lapWithSectors(92000, true, 30000, 31000, 31000),
		lapWithSectors(91500, true, 31000, 30000, 30500),
		lapWithSectors(93000, true, 29500, 32000, 31500),
	}
	ideal, err := IdealLap(laps)
	require.NoError(t, err)
	assert.Equal(t, 29500+30000+30500, ideal)
}

func TestIdealLap_NeverExceedsAnyValidLap(t *testing.T) {
	laps := []*model.DbLap{
		lapWithSectors(92000, true, 30000, 31000, 31000),
		lapWithSectors(91500, true, 31000, 30000, 30500),
	}
	ideal, err := IdealLap(laps)
	require.NoError(t, err)
	for _, lap := range laps {
		assert.LessOrEqual(t, ideal, lap.LapTimeMs)
	}
}

func TestIdealLap_SkipsInvalidLaps(t *testing.T) {
	laps := []*model.DbLap{
		lapWithSectors(80000, false, 10000, 10000, 10000), // cut the track
		lapWithSectors(92000, true, 30000, 31000, 31000),
	}
	ideal, err := IdealLap(laps)
	require.NoError(t, err)
	assert.Equal(t, 92000, ideal)
}

func TestIdealLap_SkipsMismatchedSectorCount(t *testing.T) {
	laps := []*model.DbLap{
		lapWithSectors(92000, true, 30000, 31000, 31000),
		lapWithSectors(60000, true, 30000, 30000), // different layout
	}
	ideal, err := IdealLap(laps)
	require.NoError(t, err)
	assert.Equal(t, 92000, ideal)
}

func TestIdealLap_MissingSplitExcludedPerSector(t *testing.T) {
	laps := []*model.DbLap{
		lapWithSectors(92000, true, 30000, 31000, 31000),
		lapWithSectors(91000, true, 29000, 0, 31000), // second split lost
	}
	ideal, err := IdealLap(laps)
	require.NoError(t, err)
	assert.Equal(t, 29000+31000+31000, ideal)
}

func TestIdealLap_NoValidLaps(t *testing.T) {
	_, err := IdealLap([]*model.DbLap{
		lapWithSectors(92000, false, 30000, 31000, 31000),
	})
	assert.ErrorIs(t, err, ErrNoValidLaps)

	_, err = IdealLap(nil)
	assert.ErrorIs(t, err, ErrNoValidLaps)
}
