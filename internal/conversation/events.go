package conversation

import (
	"github.com/soyeahso/ochre/internal/llm"
)

// Event is one envelope on a session's delivery channel.
type Event struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Event types delivered to clients.
const (
	TypeChatStarted    = "chat.started"
	TypeChatDelta      = "chat.delta"
	TypeToolCalls      = "assistant.tool_calls"
	TypeToolStart      = "tool.start"
	TypeToolEnd        = "tool.end"
	TypeToolOutput     = "tool.output"
	TypeChatUsage      = "chat.usage"
	TypeChatDone       = "chat.done"
	TypeRunError       = "run.error"
	TypeRunCancelled   = "run.cancelled"
	TypeSystemMessage  = "system.message"
	TypeSnapshot       = "snapshot"
)

// Publisher fans events out to a session's connected clients. Delivery is
// best-effort; slow or absent clients never block the orchestrator.
type Publisher interface {
	Publish(sessionID string, ev Event)
}

// StartedPayload acknowledges a run. MessageID is nil until the first text
// token creates the assistant segment.
type StartedPayload struct {
	MessageID *string `json:"messageId"`
}

// DeltaPayload carries one streamed text fragment.
type DeltaPayload struct {
	Text      string `json:"text"`
	MessageID string `json:"messageId"`
}

// ToolCallsPayload announces the tool calls requested by a step.
type ToolCallsPayload struct {
	ToolCalls []llm.ToolCall `json:"toolCalls"`
}

// ToolStartPayload is delivery-only; no transcript row is written for it.
type ToolStartPayload struct {
	Tool        string `json:"tool"`
	TcID        string `json:"tcId"`
	ArgsPreview string `json:"argsPreview"`
}

// ToolEndPayload reports a finished tool invocation.
type ToolEndPayload struct {
	Tool       string `json:"tool"`
	TcID       string `json:"tcId"`
	OK         bool   `json:"ok"`
	DurationMs int64  `json:"durationMs"`
}

// ToolOutputPayload carries the (possibly truncated) tool result.
type ToolOutputPayload struct {
	Tool      string `json:"tool"`
	TcID      string `json:"tcId"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// UsagePayload reports summed token usage.
type UsagePayload struct {
	Usage llm.Usage `json:"usage"`
}

// DonePayload terminates a run that completed. MessageID is nil for
// tool-only runs that produced no assistant text.
type DonePayload struct {
	MessageID  *string `json:"messageId"`
	StopReason string  `json:"stopReason"`
}

// ErrorPayload terminates a run that failed.
type ErrorPayload struct {
	Error string `json:"error"`
}

// CancelledPayload terminates a run that was superseded or cancelled.
type CancelledPayload struct {
	Reason string `json:"reason"`
}

// SystemMessagePayload carries a transcript-visible system note.
type SystemMessagePayload struct {
	Content string `json:"content"`
}
