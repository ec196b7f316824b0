// Package hooks runs user-configured shell commands on lifecycle events.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/soyeahso/ochre/internal/config"
	"github.com/soyeahso/ochre/internal/logging"
)

// Event names for the hook system.
const (
	EventRunStarted  = "run_started"
	EventRunFinished = "run_finished"
	EventServerStart = "server_start"
	EventServerStop  = "server_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventRunStarted,
	EventRunFinished,
	EventServerStart,
	EventServerStop,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles a hook event. Returning an error logs the failure but
// does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// FromConfig creates a manager with the configured shell commands registered.
func FromConfig(cfg config.HooksConfig, log *logging.Logger) *Manager {
	m := NewManager(log)
	register := func(event string, entries []config.HookEntry) {
		for i, entry := range entries {
			if entry.Command == "" {
				continue
			}
			name := fmt.Sprintf("%s[%d]", event, i)
			m.On(event, name, shellHandler(entry))
		}
	}
	register(EventRunStarted, cfg.RunStarted)
	register(EventRunFinished, cfg.RunFinished)
	register(EventServerStart, cfg.ServerStart)
	register(EventServerStop, cfg.ServerStop)
	return m
}

const defaultHookTimeout = 30 * time.Second

// shellHandler runs the entry's command with the payload JSON on stdin.
func shellHandler(entry config.HookEntry) Handler {
	timeout := defaultHookTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}
	return func(ctx context.Context, p Payload) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(data)
		cmd.Env = append(cmd.Environ(), "OCHRE_HOOK_EVENT="+p.Event)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("hook command failed: %w (output: %s)", err, bytes.TrimSpace(out))
		}
		return nil
	}
}

// On registers a handler for the given event. The name identifies the
// handler for logging and debugging.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handlers := m.handlers[event]
	filtered := make([]namedHandler, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	m.handlers[event] = filtered
}

// Emit dispatches an event to all registered handlers synchronously, in
// registration order. Errors are logged but do not prevent subsequent
// handlers from running.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	m.mu.RLock()
	handlers := make([]namedHandler, len(m.handlers[event]))
	copy(handlers, m.handlers[event])
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	payload := Payload{Event: event, Data: data}
	for _, h := range handlers {
		if err := h.handler(ctx, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", event).
				Str("handler", h.name).
				Msg("hook handler error")
		}
	}
}

// EmitAsync dispatches an event without waiting for handlers to finish.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	m.mu.RLock()
	handlers := make([]namedHandler, len(m.handlers[event]))
	copy(handlers, m.handlers[event])
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	payload := Payload{Event: event, Data: data}
	for _, h := range handlers {
		go func(h namedHandler) {
			if err := h.handler(ctx, payload); err != nil {
				m.log.Warn().
					Err(err).
					Str("event", event).
					Str("handler", h.name).
					Msg("async hook handler error")
			}
		}(h)
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that have at least one handler registered.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	return events
}
