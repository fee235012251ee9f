package agent

import (
	"sync"

	"github.com/pitwall-sim/pitwall/pkg/model"
)

// LapBuffer accumulates compact telemetry samples for the in-progress lap
// of one station. It is owned by exactly one streaming unit and never
// shared between goroutines.
type LapBuffer struct {
	LapNo   int
	samples []model.TelemetrySample
}

func NewLapBuffer(lapNo int) *LapBuffer {
	return &LapBuffer{LapNo: lapNo, samples: make([]model.TelemetrySample, 0, 1200)}
}

// Append adds a sample, keeping offsets non-decreasing. Samples arriving
// out of order (clock glitches around the start line) are dropped.
func (b *LapBuffer) Append(s model.TelemetrySample) {
	if n := len(b.samples); n > 0 && s.OffsetMs < b.samples[n-1].OffsetMs {
		return
	}
	b.samples = append(b.samples, s)
}

func (b *LapBuffer) Len() int { return len(b.samples) }

func (b *LapBuffer) Samples() []model.TelemetrySample { return b.samples }

// BufferStore keeps the completed lap buffers of one station keyed by lap
// number, bounded to a small retention window. The oldest buffer is
// evicted once the window is exceeded.
type BufferStore struct {
	mu        sync.Mutex
	retention int
	byLap     map[int][]model.TelemetrySample
	order     []int
}

const DefaultRetention = 20

func NewBufferStore(retention int) *BufferStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &BufferStore{
		retention: retention,
		byLap:     make(map[int][]model.TelemetrySample),
	}
}

func (s *BufferStore) Put(b *LapBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byLap[b.LapNo]; !ok {
		s.order = append(s.order, b.LapNo)
	}
	s.byLap[b.LapNo] = b.Samples()
	for len(s.order) > s.retention {
		evict := s.order[0]
		s.order = s.order[1:]
		delete(s.byLap, evict)
	}
}

func (s *BufferStore) Get(lapNo int) ([]model.TelemetrySample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trace, ok := s.byLap[lapNo]
	return trace, ok
}

func (s *BufferStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byLap)
}

// Traces snapshots all retained buffers, keyed by lap number. Used by
// session ingestion at end of session.
func (s *BufferStore) Traces() map[int][]model.TelemetrySample {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make(map[int][]model.TelemetrySample, len(s.byLap))
	for k, v := range s.byLap {
		ret[k] = v
	}
	return ret
}

func (s *BufferStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byLap = make(map[int][]model.TelemetrySample)
	s.order = nil
}
