package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/ochre/internal/domain"
	"github.com/soyeahso/ochre/internal/llm"
)

// MemorySessionStore is an in-memory SessionStore for tests and ephemeral use.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	messages map[string][]*domain.Message // keyed by session id
	byID     map[string]*domain.Message
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*domain.Session),
		messages: make(map[string][]*domain.Message),
		byID:     make(map[string]*domain.Message),
	}
}

// CreateSession creates a new session.
func (m *MemorySessionStore) CreateSession(title string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	sess := &domain.Session{
		ID:           uuid.NewString(),
		Title:        title,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	m.sessions[sess.ID] = sess
	out := *sess
	return &out, nil
}

// GetSession returns a session by id, or nil if it does not exist.
func (m *MemorySessionStore) GetSession(id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	out := *sess
	return &out, nil
}

// ListSessions returns sessions ordered by most recent activity.
func (m *MemorySessionStore) ListSessions(limit int) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []domain.Session
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	// Insertion-order stability is not needed here; sort by activity.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].LastActiveAt.After(out[i].LastActiveAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TouchSession bumps a session's last-active timestamp.
func (m *MemorySessionStore) TouchSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		sess.LastActiveAt = time.Now().UTC()
	}
	return nil
}

// AddMessage appends a message to a session's transcript.
func (m *MemorySessionStore) AddMessage(sessionID, role, content string, meta map[string]any) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if meta == nil {
		meta = map[string]any{}
	}
	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Meta:      meta,
	}
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	m.byID[msg.ID] = msg

	if sess, ok := m.sessions[sessionID]; ok {
		sess.LastActiveAt = msg.CreatedAt
	}

	out := *msg
	return &out, nil
}

// UpdateMessage replaces a message's content, merging meta when provided.
func (m *MemorySessionStore) UpdateMessage(id, content string, meta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("message not found: %s", id)
	}
	msg.Content = content
	if meta != nil {
		for k, v := range meta {
			msg.Meta[k] = v
		}
	}
	return nil
}

// ListMessages returns a session's transcript in insertion order.
func (m *MemorySessionStore) ListMessages(sessionID string, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 200
	}
	msgs := m.messages[sessionID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]domain.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = *msg
	}
	return out, nil
}

// MessagesForModel converts the transcript into model-ready messages.
func (m *MemorySessionStore) MessagesForModel(sessionID string, limit int) ([]llm.Message, error) {
	msgs, err := m.ListMessages(sessionID, limit)
	if err != nil {
		return nil, err
	}
	return ToModelMessages(msgs), nil
}
