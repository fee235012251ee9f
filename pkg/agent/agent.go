package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pitwall-sim/pitwall/log"
	"github.com/pitwall-sim/pitwall/pkg/model"
)

// State of the streaming unit's connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateIdentified
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateIdentified:
		return "identified"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Transport is the minimal connection surface the unit streams over.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// DialFunc establishes a Transport to the hub.
type DialFunc func(ctx context.Context, url string) (Transport, error)

type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	//nolint:errcheck // failed deadline surfaces as write error
	t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error { return t.conn.Close() }

func wsDial(ctx context.Context, url string) (Transport, error) {
	//nolint:bodyclose // gorilla keeps the response body
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

// LapHandler receives a completed lap buffer (by in-game lap index).
type LapHandler func(lapNo int, trace []model.TelemetrySample)

// CommandHandler executes one decoded command on the station.
type CommandHandler func(cmd *model.CommandMsg)

const (
	DefaultSendInterval   = 50 * time.Millisecond
	DefaultReconnectDelay = 5 * time.Second
)

// Unit is the per-station streaming state machine. It keeps one logical
// session with the hub alive across disconnects, segments the frame stream
// into laps and dispatches inbound commands.
type Unit struct {
	stationID    string
	url          string
	source       FrameSource
	store        *BufferStore
	onLap        LapHandler
	handlers     map[model.CommandType]CommandHandler
	dial         DialFunc
	sendInterval time.Duration
	backoff      time.Duration
	state        atomic.Int32
	l            *log.Logger

	// lap segmentation state, touched only by the send path
	lastLap int
	current *LapBuffer
}

type Option func(*Unit)

func WithLapHandler(h LapHandler) Option {
	return func(u *Unit) { u.onLap = h }
}

func WithCommandHandler(ct model.CommandType, h CommandHandler) Option {
	return func(u *Unit) { u.handlers[ct] = h }
}

func WithDialer(d DialFunc) Option {
	return func(u *Unit) { u.dial = d }
}

func WithSendInterval(d time.Duration) Option {
	return func(u *Unit) { u.sendInterval = d }
}

func WithReconnectDelay(d time.Duration) Option {
	return func(u *Unit) { u.backoff = d }
}

func WithBufferStore(s *BufferStore) Option {
	return func(u *Unit) { u.store = s }
}

func WithLogger(l *log.Logger) Option {
	return func(u *Unit) { u.l = l }
}

func New(stationID, url string, source FrameSource, opts ...Option) *Unit {
	ret := &Unit{
		stationID:    stationID,
		url:          url,
		source:       source,
		store:        NewBufferStore(DefaultRetention),
		handlers:     make(map[model.CommandType]CommandHandler),
		dial:         wsDial,
		sendInterval: DefaultSendInterval,
		backoff:      DefaultReconnectDelay,
		lastLap:      -1,
		l:            log.Default().Named("agent"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (u *Unit) State() State { return State(u.state.Load()) }

func (u *Unit) Store() *BufferStore { return u.store }

// Run keeps the unit connected until ctx is done. Reconnection is
// unbounded retry with a fixed backoff; the lap buffer in progress at the
// moment of a disconnect is discarded.
func (u *Unit) Run(ctx context.Context) {
	for {
		u.state.Store(int32(StateConnecting))
		conn, err := u.dial(ctx, u.url)
		if err == nil {
			err = u.identify(conn)
			if err == nil {
				u.state.Store(int32(StateIdentified))
				u.stream(ctx, conn)
			} else {
				conn.Close()
			}
		}
		u.state.Store(int32(StateDisconnected))
		// partial laps are not salvageable across a reconnect
		u.current = nil
		u.lastLap = -1
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			u.l.Warn("connection failed",
				log.String("station", u.stationID), log.ErrorField(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(u.backoff):
		}
	}
}

func (u *Unit) identify(conn Transport) error {
	data, err := json.Marshal(&model.IdentifyMsg{
		Type:      model.MsgTypeIdentify,
		StationID: u.stationID,
		Role:      model.RoleAgent,
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(data)
}

// stream runs the send and receive paths as two goroutines sharing one
// cancellation signal. Any transport error on either path tears down both.
func (u *Unit) stream(ctx context.Context, conn Transport) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	u.state.Store(int32(StateStreaming))
	u.l.Info("streaming", log.String("station", u.stationID))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		u.sendLoop(connCtx, conn)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		u.recvLoop(conn)
	}()

	<-connCtx.Done()
	// unblocks the receive path's pending read
	conn.Close()
	wg.Wait()
}

func (u *Unit) sendLoop(ctx context.Context, conn Transport) {
	lastSend := time.Time{}
	for {
		frame, err := u.source.Next(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				u.l.Warn("frame source failed", log.ErrorField(err))
			}
			return
		}
		// clamp to the configured rate even if the source runs hot
		if wait := u.sendInterval - time.Since(lastSend); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
		lastSend = time.Now()

		frame.StationID = u.stationID
		data, err := json.Marshal(&model.TelemetryMsg{
			Type:           model.MsgTypeTelemetry,
			TelemetryFrame: *frame,
		})
		if err != nil {
			u.l.Error("marshal frame", log.ErrorField(err))
			continue
		}
		if err := conn.WriteMessage(data); err != nil {
			u.l.Warn("telemetry write failed", log.ErrorField(err))
			return
		}
		u.track(frame)
	}
}

// track appends the frame's sample to the current lap buffer and performs
// the hand-off when the lap counter increments: the finished buffer is
// swapped out atomically for a fresh one before anything else sees it.
func (u *Unit) track(frame *model.TelemetryFrame) {
	if u.current == nil {
		u.current = NewLapBuffer(frame.LapCount)
		u.lastLap = frame.LapCount
	}
	if frame.LapCount > u.lastLap {
		finished := u.current
		u.current = NewLapBuffer(frame.LapCount)
		u.lastLap = frame.LapCount
		u.store.Put(finished)
		if u.onLap != nil {
			u.onLap(finished.LapNo, finished.Samples())
		}
		u.l.Debug("lap completed",
			log.String("station", u.stationID),
			log.Int("lap", finished.LapNo),
			log.Int("samples", finished.Len()))
	}
	u.current.Append(frame.Sample())
}

func (u *Unit) recvLoop(conn Transport) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd model.CommandMsg
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Command == "" {
			u.l.Debug("dropping unparseable command",
				log.String("station", u.stationID))
			continue
		}
		u.dispatch(&cmd)
	}
}

// dispatch routes a decoded command to its handler. Unknown commands are
// logged and ignored, never fatal.
func (u *Unit) dispatch(cmd *model.CommandMsg) {
	ct := model.ParseCommand(cmd.Command)
	if ct == model.CommandUnknown {
		u.l.Warn("unrecognized command",
			log.String("station", u.stationID),
			log.String("command", cmd.Command))
		return
	}
	handler, ok := u.handlers[ct]
	if !ok {
		u.l.Debug("no handler for command",
			log.String("command", cmd.Command))
		return
	}
	handler(cmd)
}
