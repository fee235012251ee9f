//nolint:funlen // ok for tests
package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsistencyScore_InsufficientData(t *testing.T) {
	assert.InDelta(t, 100.0, ConsistencyScore(nil), 0.001)
	assert.InDelta(t, 100.0, ConsistencyScore([]int{90000}), 0.001)
}

func TestConsistencyScore_IdenticalLaps(t *testing.T) {
	assert.InDelta(t, 100.0, ConsistencyScore([]int{90000, 90000, 90000}), 0.001)
}

func TestConsistencyScore_Calibration(t *testing.T) {
	// sigma=50 over two laps 100ms apart
	assert.InDelta(t, 99.0, ConsistencyScore([]int{90000, 90100}), 0.001)
	// sigma=2500
	assert.InDelta(t, 50.0, ConsistencyScore([]int{90000, 95000}), 0.001)
	// sigma=30000, clamps at 0
	assert.InDelta(t, 0.0, ConsistencyScore([]int{90000, 150000}), 0.001)
}

func TestConsistencyScore_Bounds(t *testing.T) {
	cases := [][]int{
		{90000, 90001},
		{90000, 91000, 92000},
		{1, 1000000},
		{60000, 60000, 60000, 600000},
	}
	for _, lapTimes := range cases {
		score := ConsistencyScore(lapTimes)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	}
}

func TestConsistencyScore_MonotonicSpread(t *testing.T) {
	prev := 100.0
	for _, spread := range []int{0, 100, 500, 1000, 5000, 20000} {
		score := ConsistencyScore([]int{90000, 90000 + spread})
		assert.LessOrEqual(t, score, prev,
			"score must not increase with spread %d", spread)
		prev = score
	}
}
