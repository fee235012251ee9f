package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pitwall-sim/pitwall/log"
	"github.com/pitwall-sim/pitwall/pkg/model"
)

const (
	writeTimeout     = 5 * time.Second
	identifyTimeout  = 10 * time.Second
	maxMessageLength = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts *websocket.Conn to the hub Conn interface. Gorilla allows
// only one concurrent writer, so writes are serialized here.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) WriteMessage(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	//nolint:errcheck // failed deadline surfaces as write error
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Close() error { return w.conn.Close() }

// Server upgrades HTTP connections and attaches them to the hub according
// to the role declared in the identify message.
type Server struct {
	hub *Hub
	l   *log.Logger
}

type ServerOption func(*Server)

func WithServerLogger(l *log.Logger) ServerOption {
	return func(s *Server) { s.l = l }
}

func NewServer(h *Hub, opts ...ServerOption) *Server {
	ret := &Server{hub: h, l: log.Default().Named("hub.ws")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.l.Error("websocket upgrade failed", log.ErrorField(err))
		return
	}
	conn.SetReadLimit(maxMessageLength)

	ident, err := readIdentify(conn)
	if err != nil {
		s.l.Warn("identification failed", log.ErrorField(err))
		conn.Close()
		return
	}

	wc := &wsConn{conn: conn}
	switch ident.Role {
	case model.RoleAgent:
		if ident.StationID == "" {
			s.l.Warn("agent identify without station id")
			conn.Close()
			return
		}
		s.hub.RegisterAgent(ident.StationID, wc)
		s.runAgent(ident.StationID, wc)
	case model.RoleClient:
		s.hub.RegisterClient(wc)
		s.runClient(wc)
	default:
		s.l.Warn("unknown role", log.String("role", string(ident.Role)))
		conn.Close()
	}
}

func readIdentify(conn *websocket.Conn) (*model.IdentifyMsg, error) {
	//nolint:errcheck // failed deadline surfaces as read error
	conn.SetReadDeadline(time.Now().Add(identifyTimeout))
	defer conn.SetReadDeadline(time.Time{}) //nolint:errcheck // see above
	var ident model.IdentifyMsg
	if err := conn.ReadJSON(&ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

// runAgent reads telemetry messages until the transport fails and relays
// each one verbatim to all clients. A malformed message is dropped, the
// connection stays open.
func (s *Server) runAgent(stationID string, wc *wsConn) {
	defer func() {
		s.hub.Unregister(wc)
		wc.Close()
		s.l.Info("agent disconnected", log.String("station", stationID))
	}()
	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg model.TelemetryMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != model.MsgTypeTelemetry {
			s.l.Debug("dropping unparseable message",
				log.String("station", stationID))
			continue
		}
		s.hub.BroadcastFrame(stationID, data)
	}
}

// runClient only has to notice the peer going away; inbound client data
// is discarded.
func (s *Server) runClient(wc *wsConn) {
	defer func() {
		s.hub.Unregister(wc)
		wc.Close()
	}()
	for {
		if _, _, err := wc.conn.ReadMessage(); err != nil {
			return
		}
	}
}
