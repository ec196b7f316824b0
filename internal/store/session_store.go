package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/ochre/internal/domain"
	"github.com/soyeahso/ochre/internal/llm"
)

// sqliteTimeFormat is the layout emitted by datetime('now').
const sqliteTimeFormat = "2006-01-02 15:04:05"

// SessionStore persists chat sessions and their transcripts.
type SessionStore interface {
	// CreateSession creates a new session.
	CreateSession(title string) (*domain.Session, error)

	// GetSession returns a session by id, or nil if it does not exist.
	GetSession(id string) (*domain.Session, error)

	// ListSessions returns sessions ordered by most recent activity.
	ListSessions(limit int) ([]domain.Session, error)

	// TouchSession bumps a session's last-active timestamp.
	TouchSession(id string) error

	// AddMessage appends a message to a session's transcript.
	AddMessage(sessionID, role, content string, meta map[string]any) (*domain.Message, error)

	// UpdateMessage replaces a message's content. A non-nil meta is merged
	// into the existing meta rather than overwriting it, so fields like
	// assistant tool_calls stay linked to their tool outputs.
	UpdateMessage(id, content string, meta map[string]any) error

	// ListMessages returns a session's transcript in insertion order.
	ListMessages(sessionID string, limit int) ([]domain.Message, error)

	// MessagesForModel converts the transcript into model-ready messages.
	// Tool messages whose tool_call_id has no matching assistant tool call
	// in the same history are dropped; providers reject orphan tool outputs.
	MessagesForModel(sessionID string, limit int) ([]llm.Message, error)
}

// SQLiteSessionStore is the SQLite-backed SessionStore.
type SQLiteSessionStore struct {
	db *DB
}

// NewSessionStore creates a session store over the given database.
func NewSessionStore(db *DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db}
}

// CreateSession creates a new session.
func (s *SQLiteSessionStore) CreateSession(title string) (*domain.Session, error) {
	id := uuid.NewString()
	_, err := s.db.sql.Exec(
		`INSERT INTO sessions (id, title, created_at, last_active_at)
		 VALUES (?, ?, datetime('now'), datetime('now'))`,
		id, title,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s.GetSession(id)
}

// GetSession returns a session by id, or nil if it does not exist.
func (s *SQLiteSessionStore) GetSession(id string) (*domain.Session, error) {
	row := s.db.sql.QueryRow(
		"SELECT id, title, created_at, last_active_at FROM sessions WHERE id = ?", id,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions ordered by most recent activity.
func (s *SQLiteSessionStore) ListSessions(limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.sql.Query(
		"SELECT id, title, created_at, last_active_at FROM sessions ORDER BY last_active_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// TouchSession bumps a session's last-active timestamp.
func (s *SQLiteSessionStore) TouchSession(id string) error {
	_, err := s.db.sql.Exec("UPDATE sessions SET last_active_at = datetime('now') WHERE id = ?", id)
	return err
}

// AddMessage appends a message to a session's transcript.
func (s *SQLiteSessionStore) AddMessage(sessionID, role, content string, meta map[string]any) (*domain.Message, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling meta: %w", err)
	}

	id := uuid.NewString()
	tx, err := s.db.sql.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO messages (id, session_id, role, content, created_at, seq, meta_json)
		 VALUES (?, ?, ?, ?, datetime('now'),
		         (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?),
		         ?)`,
		id, sessionID, role, content, sessionID, string(metaJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}
	if _, err := tx.Exec("UPDATE sessions SET last_active_at = datetime('now') WHERE id = ?", sessionID); err != nil {
		return nil, fmt.Errorf("touching session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.getMessage(id)
}

// UpdateMessage replaces a message's content, merging meta when provided.
func (s *SQLiteSessionStore) UpdateMessage(id, content string, meta map[string]any) error {
	if meta == nil {
		_, err := s.db.sql.Exec("UPDATE messages SET content = ? WHERE id = ?", content, id)
		return err
	}

	var existingRaw sql.NullString
	err := s.db.sql.QueryRow("SELECT meta_json FROM messages WHERE id = ?", id).Scan(&existingRaw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("message not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("reading message meta: %w", err)
	}

	existing := map[string]any{}
	if existingRaw.Valid && existingRaw.String != "" {
		if err := json.Unmarshal([]byte(existingRaw.String), &existing); err != nil {
			existing = map[string]any{}
		}
	}
	for k, v := range meta {
		existing[k] = v
	}
	merged, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}

	_, err = s.db.sql.Exec("UPDATE messages SET content = ?, meta_json = ? WHERE id = ?", content, string(merged), id)
	return err
}

// ListMessages returns a session's transcript in insertion order.
func (s *SQLiteSessionStore) ListMessages(sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.sql.Query(
		`SELECT id, session_id, role, content, created_at, meta_json
		 FROM messages WHERE session_id = ? ORDER BY seq ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, *msg)
	}
	return out, rows.Err()
}

// MessagesForModel converts the transcript into model-ready messages.
func (s *SQLiteSessionStore) MessagesForModel(sessionID string, limit int) ([]llm.Message, error) {
	msgs, err := s.ListMessages(sessionID, limit)
	if err != nil {
		return nil, err
	}
	return ToModelMessages(msgs), nil
}

// ToModelMessages maps transcript rows to wire messages, dropping tool
// outputs whose call id has no matching assistant tool call.
func ToModelMessages(msgs []domain.Message) []llm.Message {
	validCallIDs := map[string]bool{}
	for _, m := range msgs {
		if m.Role != llm.RoleAssistant {
			continue
		}
		for _, tc := range metaToolCalls(m.Meta) {
			if tc.ID != "" {
				validCallIDs[tc.ID] = true
			}
		}
	}

	var out []llm.Message
	for _, m := range msgs {
		wire := llm.Message{Role: m.Role, Content: m.Content}

		if m.Role == llm.RoleTool {
			tcid, _ := m.Meta[domain.MetaToolCallID].(string)
			if tcid == "" || !validCallIDs[tcid] {
				continue
			}
			wire.ToolCallID = tcid
			if name, ok := m.Meta[domain.MetaName].(string); ok {
				wire.Name = name
			}
		}

		if m.Role == llm.RoleAssistant {
			wire.ToolCalls = metaToolCalls(m.Meta)
		}

		out = append(out, wire)
	}
	return out
}

// metaToolCalls decodes the tool_calls meta field back into wire shape.
func metaToolCalls(meta map[string]any) []llm.ToolCall {
	raw, ok := meta[domain.MetaToolCalls]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var calls []llm.ToolCall
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil
	}
	return calls
}

func (s *SQLiteSessionStore) getMessage(id string) (*domain.Message, error) {
	row := s.db.sql.QueryRow(
		"SELECT id, session_id, role, content, created_at, meta_json FROM messages WHERE id = ?", id,
	)
	msg, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var created, lastActive string
	if err := r.Scan(&sess.ID, &sess.Title, &created, &lastActive); err != nil {
		return nil, err
	}
	sess.CreatedAt = parseSQLiteTime(created)
	sess.LastActiveAt = parseSQLiteTime(lastActive)
	return &sess, nil
}

func scanMessage(r rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var created string
	var metaRaw sql.NullString
	if err := r.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &created, &metaRaw); err != nil {
		return nil, err
	}
	msg.CreatedAt = parseSQLiteTime(created)
	msg.Meta = map[string]any{}
	if metaRaw.Valid && metaRaw.String != "" {
		if err := json.Unmarshal([]byte(metaRaw.String), &msg.Meta); err != nil {
			msg.Meta = map[string]any{"_raw": metaRaw.String}
		}
	}
	return &msg, nil
}

func parseSQLiteTime(s string) time.Time {
	t, err := time.Parse(sqliteTimeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
