package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/pitwall-sim/pitwall/pkg/model"
)

// FrameSource produces telemetry frames at the station's natural cadence.
// Next blocks until a frame is available or ctx is done.
type FrameSource interface {
	Next(ctx context.Context) (*model.TelemetryFrame, error)
}

// ReplaySource feeds frames from a JSON-lines recording, one frame per
// line, paced at the given interval.
type ReplaySource struct {
	scanner  *bufio.Scanner
	interval time.Duration
	last     time.Time
}

func NewReplaySource(r io.Reader, interval time.Duration) *ReplaySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024)
	return &ReplaySource{scanner: sc, interval: interval}
}

func (s *ReplaySource) Next(ctx context.Context) (*model.TelemetryFrame, error) {
	if !s.last.IsZero() {
		wait := s.interval - time.Since(s.last)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var frame model.TelemetryFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			// single bad line is skipped, recording continues
			continue
		}
		s.last = time.Now()
		return &frame, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// SynthSource generates plausible laps for local testing: track position
// advances with a speed profile, the lap counter increments on wrap.
type SynthSource struct {
	interval  time.Duration
	lapTime   time.Duration
	pos       float64
	lap       int
	elapsedMs int
	last      time.Time
}

func NewSynthSource(interval, lapTime time.Duration) *SynthSource {
	if lapTime <= 0 {
		lapTime = 90 * time.Second
	}
	return &SynthSource{interval: interval, lapTime: lapTime}
}

func (s *SynthSource) Next(ctx context.Context) (*model.TelemetryFrame, error) {
	if !s.last.IsZero() {
		wait := s.interval - time.Since(s.last)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	s.last = time.Now()

	step := float64(s.interval) / float64(s.lapTime)
	s.pos += step
	s.elapsedMs += int(s.interval.Milliseconds())
	if s.pos >= 1.0 {
		s.pos -= 1.0
		s.lap++
		s.elapsedMs = 0
	}

	// speed swings between ~80 and ~240 km/h over a lap
	speed := 160 + 80*math.Sin(s.pos*4*math.Pi)
	return &model.TelemetryFrame{
		Speed:     speed,
		RPM:       3000 + speed*25,
		Gear:      2 + int(speed/50),
		Throttle:  math.Max(0, math.Sin(s.pos*4*math.Pi)),
		Brake:     math.Max(0, -math.Sin(s.pos*4*math.Pi)),
		TrackPos:  s.pos,
		LapCount:  s.lap,
		LapTimeMs: s.elapsedMs,
	}, nil
}
