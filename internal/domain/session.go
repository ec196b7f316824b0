package domain

import "time"

// Session is a chat session with its own transcript and run state.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Message is a single persisted transcript entry.
//
// Meta carries role-specific extras: assistant messages store "tool_calls",
// tool messages store "tool_call_id" and "name". Cancelled assistant
// messages are marked with "cancelled": true.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Role      string         `json:"role"` // "user", "assistant", "system", "tool"
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Meta keys recognized by the transcript store and model prompt builder.
const (
	MetaToolCalls  = "tool_calls"
	MetaToolCallID = "tool_call_id"
	MetaName       = "name"
	MetaCancelled  = "cancelled"
)
