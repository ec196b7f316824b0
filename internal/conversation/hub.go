package conversation

import (
	"sync"
)

// Hub is the process-wide registry of per-session orchestrators. Sessions
// are created on first reference and live until shutdown.
type Hub struct {
	deps Deps

	mu    sync.Mutex
	convs map[string]*Conversation
}

// NewHub creates the registry.
func NewHub(deps Deps) *Hub {
	return &Hub{deps: deps, convs: make(map[string]*Conversation)}
}

// Get returns the session's orchestrator, creating it on first use.
func (h *Hub) Get(sessionID string) *Conversation {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.convs[sessionID]
	if !ok {
		c = New(sessionID, h.deps)
		h.convs[sessionID] = c
	}
	return c
}

// Shutdown cancels every in-flight run.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	convs := make([]*Conversation, 0, len(h.convs))
	for _, c := range h.convs {
		convs = append(convs, c)
	}
	h.mu.Unlock()

	for _, c := range convs {
		c.Cancel("shutdown")
	}
}
