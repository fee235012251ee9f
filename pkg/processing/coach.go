package processing

import (
	"fmt"
	"math"
	"sort"

	"github.com/pitwall-sim/pitwall/pkg/model"
)

const (
	numBuckets = 100

	// a deficit smaller than this is not worth a tip (km/h)
	significanceThreshold = -15.0

	// suppress further tips of the same kind within this track fraction
	suppressWindow = 0.10

	maxTips = 5

	severityMedium = 25.0
	severityHigh   = 40.0
)

// BucketSpeeds partitions a trace into 100 fixed buckets by normalized
// track position and averages the speed samples per bucket. Gaps are
// linearly interpolated from the nearest populated bucket on each side; a
// trace with no samples at all yields all zeros, which downstream treats
// as "no information" rather than a real dip.
func BucketSpeeds(trace []model.TelemetrySample) []float64 {
	sums := make([]float64, numBuckets)
	counts := make([]int, numBuckets)
	for i := range trace {
		b := int(trace[i].TrackPos * numBuckets)
		if b < 0 {
			b = 0
		}
		if b >= numBuckets {
			b = numBuckets - 1
		}
		sums[b] += trace[i].Speed
		counts[b]++
	}
	speeds := make([]float64, numBuckets)
	for b := range speeds {
		if counts[b] > 0 {
			speeds[b] = sums[b] / float64(counts[b])
		}
	}
	interpolateGaps(speeds, counts)
	return speeds
}

//nolint:gocognit // straight scan
func interpolateGaps(speeds []float64, counts []int) {
	for b := range speeds {
		if counts[b] > 0 {
			continue
		}
		left, right := -1, -1
		for i := b - 1; i >= 0; i-- {
			if counts[i] > 0 {
				left = i
				break
			}
		}
		for i := b + 1; i < numBuckets; i++ {
			if counts[i] > 0 {
				right = i
				break
			}
		}
		switch {
		case left >= 0 && right >= 0:
			frac := float64(b-left) / float64(right-left)
			speeds[b] = speeds[left] + frac*(speeds[right]-speeds[left])
		case left >= 0:
			speeds[b] = speeds[left]
		case right >= 0:
			speeds[b] = speeds[right]
			// neither side populated: whole lap is empty, stays 0
		}
	}
}

// CompareLaps produces coaching tips from a subject trace measured against
// a reference ("ghost") trace. Returns at most maxTips tips ranked by
// deficit size; an empty result means no significant deficit was found.
//
//nolint:cyclop // classification is one decision tree
func CompareLaps(subject, reference []model.TelemetrySample) []model.CoachTip {
	subj := BucketSpeeds(subject)
	ref := BucketSpeeds(reference)

	lastPos := map[model.TipKind]float64{
		model.TipBraking: -1,
		model.TipApex:    -1,
		model.TipExit:    -1,
	}

	var tips []model.CoachTip
	for b := 1; b < numBuckets-1; b++ {
		// a zero bucket carries no information on that lap
		if subj[b] == 0 || ref[b] == 0 {
			continue
		}
		delta := subj[b] - ref[b]
		if delta >= significanceThreshold {
			continue
		}

		pos := float64(b) / numBuckets
		kind := classify(subj, ref, b)
		if last := lastPos[kind]; last >= 0 && pos-last < suppressWindow {
			continue
		}
		lastPos[kind] = pos
		tips = append(tips, model.CoachTip{
			Kind:       kind,
			Severity:   severity(delta),
			TrackPos:   pos,
			SpeedDelta: delta,
			Message:    tipMessage(kind, pos, delta),
		})
	}

	sort.Slice(tips, func(i, j int) bool {
		return math.Abs(tips[i].SpeedDelta) > math.Abs(tips[j].SpeedDelta)
	})
	if len(tips) > maxTips {
		tips = tips[:maxTips]
	}
	return tips
}

// classify decides what kind of mistake a speed deficit at bucket b looks
// like, from the local shape of both traces.
func classify(subj, ref []float64, b int) model.TipKind {
	subjRising := subj[b] > subj[b-1]
	refRising := ref[b] > ref[b-1]
	switch {
	case subjRising && refRising && (ref[b]-ref[b-1]) > (subj[b]-subj[b-1]):
		// both accelerating out of the corner, ghost pulls harder
		return model.TipExit
	case !subjRising && ref[b] >= ref[b-1]:
		// ghost still carries speed while the subject already slows
		return model.TipBraking
	default:
		return model.TipApex
	}
}

func severity(delta float64) model.TipSeverity {
	switch {
	case math.Abs(delta) >= severityHigh:
		return model.SeverityHigh
	case math.Abs(delta) >= severityMedium:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func tipMessage(kind model.TipKind, pos, delta float64) string {
	switch kind {
	case model.TipBraking:
		return fmt.Sprintf(
			"braking too early at %.0f%% of the lap: %.0f km/h down on the ghost",
			pos*100, -delta)
	case model.TipExit:
		return fmt.Sprintf(
			"slow corner exit at %.0f%% of the lap: ghost accelerates %.0f km/h harder",
			pos*100, -delta)
	default:
		return fmt.Sprintf(
			"apex speed low at %.0f%% of the lap: %.0f km/h down on the ghost",
			pos*100, -delta)
	}
}

// PickReference selects the ghost lap for a comparison: the fastest other
// valid lap, or the subject itself when no candidate exists.
func PickReference(subject *model.DbLap, laps []*model.DbLap) *model.DbLap {
	var best *model.DbLap
	for _, lap := range laps {
		if lap.ID == subject.ID || !lap.Valid || len(lap.Trace) == 0 {
			continue
		}
		if best == nil || lap.LapTimeMs < best.LapTimeMs {
			best = lap
		}
	}
	if best == nil {
		return subject
	}
	return best
}
