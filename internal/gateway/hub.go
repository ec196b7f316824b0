package gateway

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/ochre/internal/conversation"
	"github.com/soyeahso/ochre/internal/logging"
)

// wsConn is one live WebSocket connection bound to a session. Writes are
// serialized; gorilla sockets allow only one concurrent writer.
type wsConn struct {
	id     string
	socket *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newWSConn(socket *websocket.Conn) *wsConn {
	return &wsConn{id: uuid.NewString(), socket: socket}
}

// SendJSON writes one JSON message. Thread-safe.
func (c *wsConn) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.socket.WriteJSON(v)
}

// Close closes the socket. Safe to call multiple times.
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.socket.Close()
}

// SessionHub fans run events out to the WebSocket connections attached to
// each session. It implements conversation.Publisher. Delivery is
// best-effort: a failed write never blocks or aborts the run.
type SessionHub struct {
	log *logging.Logger

	mu    sync.Mutex
	conns map[string]map[*wsConn]struct{} // session id -> connections
}

// NewSessionHub creates an empty hub.
func NewSessionHub(log *logging.Logger) *SessionHub {
	return &SessionHub{
		log:   log.Sub("ws"),
		conns: make(map[string]map[*wsConn]struct{}),
	}
}

// Register attaches a connection to a session.
func (h *SessionHub) Register(sessionID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[sessionID]
	if !ok {
		set = make(map[*wsConn]struct{})
		h.conns[sessionID] = set
	}
	set[c] = struct{}{}
	h.log.Debug().Str("sessionId", sessionID).Str("connId", c.id).Msg("client connected")
}

// Unregister detaches a connection from a session.
func (h *SessionHub) Unregister(sessionID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, sessionID)
		}
	}
	h.log.Debug().Str("sessionId", sessionID).Str("connId", c.id).Msg("client disconnected")
}

// Publish delivers an event to every connection attached to the session.
func (h *SessionHub) Publish(sessionID string, ev conversation.Event) {
	h.mu.Lock()
	targets := make([]*wsConn, 0, len(h.conns[sessionID]))
	for c := range h.conns[sessionID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.SendJSON(ev); err != nil {
			h.log.Warn().Err(err).Str("sessionId", sessionID).Str("connId", c.id).Msg("event send failed")
		}
	}
}

// Count returns the number of connections attached to a session.
func (h *SessionHub) Count(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[sessionID])
}

// CloseAll closes every connection.
func (h *SessionHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, set := range h.conns {
		for c := range set {
			c.Close()
		}
		delete(h.conns, sessionID)
	}
}
