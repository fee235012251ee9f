//nolint:funlen // ok for tests
package agent

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitwall-sim/pitwall/pkg/model"
)

// fakeTransport is an in-memory Transport. Inbound messages are fed via a
// channel, outbound writes are recorded. failAfter > 0 makes writes fail
// once that many have succeeded.
type fakeTransport struct {
	mu        sync.Mutex
	writes    [][]byte
	inbound   chan []byte
	done      chan struct{}
	once      sync.Once
	failAfter int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 8),
		done:    make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case msg := <-f.inbound:
		return msg, nil
	case <-f.done:
		return nil, io.ErrClosedPipe
	}
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	select {
	case <-f.done:
		return io.ErrClosedPipe
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter > 0 && len(f.writes) >= f.failAfter {
		return io.ErrClosedPipe
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeTransport) numWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeTransport) write(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[i]
}

// scriptSource replays a fixed frame sequence, then blocks until ctx ends.
type scriptSource struct {
	frames []model.TelemetryFrame
	idx    int
}

func (s *scriptSource) Next(ctx context.Context) (*model.TelemetryFrame, error) {
	if s.idx >= len(s.frames) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	frame := s.frames[s.idx]
	s.idx++
	return &frame, nil
}

func TestUnitIdentifiesAndSegmentsLaps(t *testing.T) {
	transport := newFakeTransport()
	source := &scriptSource{frames: []model.TelemetryFrame{
		{LapCount: 3, LapTimeMs: 0, Speed: 100},
		{LapCount: 3, LapTimeMs: 50, Speed: 110},
		{LapCount: 4, LapTimeMs: 0, Speed: 120},
	}}

	type lapEvent struct {
		lapNo int
		trace []model.TelemetrySample
	}
	laps := make(chan lapEvent, 1)

	u := New("pit-9", "ws://hub/ws", source,
		WithDialer(func(context.Context, string) (Transport, error) {
			return transport, nil
		}),
		WithSendInterval(time.Millisecond),
		WithLapHandler(func(lapNo int, trace []model.TelemetrySample) {
			laps <- lapEvent{lapNo, trace}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(runDone)
	}()

	var ev lapEvent
	select {
	case ev = <-laps:
	case <-time.After(5 * time.Second):
		t.Fatal("no lap hand-off")
	}
	cancel()
	<-runDone

	assert.Equal(t, 3, ev.lapNo)
	require.Len(t, ev.trace, 2)
	assert.Equal(t, 50, ev.trace[1].OffsetMs)

	trace, ok := u.Store().Get(3)
	require.True(t, ok)
	assert.Len(t, trace, 2)

	// first write must be the identification
	require.GreaterOrEqual(t, transport.numWrites(), 2)
	var ident model.IdentifyMsg
	require.NoError(t, json.Unmarshal(transport.write(0), &ident))
	assert.Equal(t, model.MsgTypeIdentify, ident.Type)
	assert.Equal(t, "pit-9", ident.StationID)
	assert.Equal(t, model.RoleAgent, ident.Role)

	var msg model.TelemetryMsg
	require.NoError(t, json.Unmarshal(transport.write(1), &msg))
	assert.Equal(t, model.MsgTypeTelemetry, msg.Type)
	assert.Equal(t, "pit-9", msg.StationID)
}

func TestUnitRetriesAfterDialFailure(t *testing.T) {
	transport := newFakeTransport()
	var attempts atomic.Int32
	dial := func(context.Context, string) (Transport, error) {
		if attempts.Add(1) == 1 {
			return nil, io.ErrClosedPipe
		}
		return transport, nil
	}
	source := &scriptSource{frames: []model.TelemetryFrame{{LapCount: 1}}}

	u := New("pit-2", "ws://hub/ws", source,
		WithDialer(dial),
		WithSendInterval(time.Millisecond),
		WithReconnectDelay(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(runDone)
	}()

	assert.Eventually(t, func() bool {
		return transport.numWrites() >= 2 // identify + first frame
	}, 5*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))

	cancel()
	<-runDone
	assert.Equal(t, StateDisconnected, u.State())
}

func TestUnitDiscardsPartialLapOnReconnect(t *testing.T) {
	first := newFakeTransport()
	first.failAfter = 2 // identify + one mid-lap frame, then the link dies
	second := newFakeTransport()
	transports := []*fakeTransport{first, second}
	var attempts atomic.Int32
	dial := func(context.Context, string) (Transport, error) {
		n := attempts.Add(1)
		if int(n) > len(transports) {
			return nil, io.ErrClosedPipe
		}
		return transports[n-1], nil
	}

	source := &scriptSource{frames: []model.TelemetryFrame{
		{LapCount: 3, LapTimeMs: 0},
		{LapCount: 3, LapTimeMs: 50}, // write fails here, lap 3 is lost
		{LapCount: 4, LapTimeMs: 0},
		{LapCount: 5, LapTimeMs: 0},
	}}

	laps := make(chan int, 2)
	u := New("pit-4", "ws://hub/ws", source,
		WithDialer(dial),
		WithSendInterval(time.Millisecond),
		WithReconnectDelay(time.Millisecond),
		WithLapHandler(func(lapNo int, _ []model.TelemetrySample) {
			laps <- lapNo
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(runDone)
	}()

	select {
	case lapNo := <-laps:
		assert.Equal(t, 4, lapNo, "the interrupted lap must not be handed off")
	case <-time.After(5 * time.Second):
		t.Fatal("no lap hand-off after reconnect")
	}
	cancel()
	<-runDone

	_, ok := u.Store().Get(3)
	assert.False(t, ok)
}

func TestUnitDispatchesCommands(t *testing.T) {
	transport := newFakeTransport()
	source := &scriptSource{}

	handled := make(chan string, 1)
	u := New("pit-1", "ws://hub/ws", source,
		WithDialer(func(context.Context, string) (Transport, error) {
			return transport, nil
		}),
		WithSendInterval(time.Millisecond),
		WithCommandHandler(model.CommandKioskOn, func(cmd *model.CommandMsg) {
			handled <- cmd.Command
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(runDone)
	}()

	// unknown and unhandled commands fail soft, the handled one arrives
	transport.inbound <- []byte(`{"command":"warp_drive"}`)
	transport.inbound <- []byte(`{"command":"restart"}`)
	transport.inbound <- []byte(`not json`)
	transport.inbound <- []byte(`{"command":"kiosk_on"}`)

	select {
	case cmd := <-handled:
		assert.Equal(t, "kiosk_on", cmd)
	case <-time.After(5 * time.Second):
		t.Fatal("command not dispatched")
	}
	cancel()
	<-runDone
	assert.Empty(t, handled)
}
