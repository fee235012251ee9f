package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pitwall-sim/pitwall/log"
	"github.com/pitwall-sim/pitwall/pkg/model"
)

// Conn is the transport handle the hub routes messages over. The websocket
// layer wraps *websocket.Conn into this; tests use in-memory fakes.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

// Relay receives a copy of every broadcast frame (e.g. for NATS fan-out to
// sibling instances or recorders). May be nil.
type Relay interface {
	Publish(stationID string, payload []byte) error
}

// Hub multiplexes agent and client connections: every agent frame is
// broadcast to all clients, commands are addressed to a single agent.
// All maps are guarded by one mutex; network writes happen outside of it.
type Hub struct {
	mu       sync.Mutex
	agents   map[string]Conn
	agentIDs map[Conn]string
	clients  map[Conn]struct{}
	lastSeen map[string]time.Time
	relay    Relay
	l        *log.Logger

	numBroadcasts int64
	numDropped    int64
}

type Option func(*Hub)

func WithLogger(l *log.Logger) Option {
	return func(h *Hub) { h.l = l }
}

func WithRelay(r Relay) Option {
	return func(h *Hub) { h.relay = r }
}

func New(opts ...Option) *Hub {
	ret := &Hub{
		agents:   make(map[string]Conn),
		agentIDs: make(map[Conn]string),
		clients:  make(map[Conn]struct{}),
		lastSeen: make(map[string]time.Time),
		l:        log.Default().Named("hub"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.setupMetrics()
	return ret
}

// RegisterAgent stores conn as the live connection for stationID.
// A prior connection for the same station is replaced and closed
// (last-writer-wins).
func (h *Hub) RegisterAgent(stationID string, conn Conn) {
	h.mu.Lock()
	prev := h.agents[stationID]
	h.agents[stationID] = conn
	h.agentIDs[conn] = stationID
	if prev != nil && prev != conn {
		delete(h.agentIDs, prev)
	}
	h.lastSeen[stationID] = time.Now()
	h.mu.Unlock()

	if prev != nil && prev != conn {
		prev.Close()
		h.l.Info("replaced stale agent connection", log.String("station", stationID))
	}
	h.l.Debug("agent registered", log.String("station", stationID))
}

func (h *Hub) RegisterClient(conn Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	h.l.Debug("client registered", log.Int("clients", h.NumClients()))
}

// Unregister removes conn from whichever set contains it. Safe to call
// multiple times for the same connection.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	if stationID, ok := h.agentIDs[conn]; ok {
		delete(h.agentIDs, conn)
		// only remove the station entry if it still points at this conn
		if h.agents[stationID] == conn {
			delete(h.agents, stationID)
			delete(h.lastSeen, stationID)
		}
	}
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Broadcast sends payload to every registered client. A failing client is
// unregistered and closed; the remaining clients still receive the payload.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	h.numBroadcasts++
	recipients := make([]Conn, 0, len(h.clients))
	for c := range h.clients {
		recipients = append(recipients, c)
	}
	h.mu.Unlock()

	for _, c := range recipients {
		if err := c.WriteMessage(payload); err != nil {
			h.l.Debug("dropping client after write error", log.ErrorField(err))
			h.Unregister(c)
			c.Close()
			h.mu.Lock()
			h.numDropped++
			h.mu.Unlock()
		}
	}
}

// BroadcastFrame relays one telemetry payload from stationID: fan-out to
// all clients, optional relay publish, and activity bookkeeping for the
// stale watchdog.
func (h *Hub) BroadcastFrame(stationID string, payload []byte) {
	h.Touch(stationID)
	h.Broadcast(payload)
	if h.relay != nil {
		if err := h.relay.Publish(stationID, payload); err != nil {
			h.l.Warn("relay publish failed",
				log.String("station", stationID), log.ErrorField(err))
		}
	}
}

// SendToAgent delivers cmd to the agent registered for stationID.
// Returns false when the station is offline or the write fails; the caller
// treats both as "command not delivered".
func (h *Hub) SendToAgent(stationID string, cmd *model.CommandMsg) bool {
	h.mu.Lock()
	conn, ok := h.agents[stationID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		h.l.Error("marshal command", log.ErrorField(err))
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		h.l.Warn("command write failed",
			log.String("station", stationID), log.ErrorField(err))
		h.Unregister(conn)
		conn.Close()
		return false
	}
	return true
}

// Touch records frame activity for the stale watchdog.
func (h *Hub) Touch(stationID string) {
	h.mu.Lock()
	h.lastSeen[stationID] = time.Now()
	h.mu.Unlock()
}

// RemoveStale drops agents without frame activity for longer than maxAge.
// Returns the removed station ids.
func (h *Hub) RemoveStale(maxAge time.Duration) []string {
	deadline := time.Now().Add(-maxAge)
	h.mu.Lock()
	var stale []Conn
	var ids []string
	for stationID, seen := range h.lastSeen {
		if seen.Before(deadline) {
			if conn, ok := h.agents[stationID]; ok {
				stale = append(stale, conn)
				ids = append(ids, stationID)
			}
		}
	}
	h.mu.Unlock()

	for i, conn := range stale {
		h.l.Info("removing stale agent", log.String("station", ids[i]))
		h.Unregister(conn)
		conn.Close()
	}
	return ids
}

func (h *Hub) NumAgents() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.agents)
}

func (h *Hub) NumClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// AgentIDs returns the currently connected station ids.
func (h *Hub) AgentIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ret := make([]string, 0, len(h.agents))
	for id := range h.agents {
		ret = append(ret, id)
	}
	return ret
}
