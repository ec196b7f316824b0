package agent

import (
	"time"

	"github.com/soyeahso/ochre/internal/llm"
)

// Event is a progress notification emitted while a run executes. It is a
// closed set: every implementation lives in this package, so consumers can
// switch over the concrete types exhaustively.
type Event interface {
	isEvent()
}

// DeltaEvent carries an incremental chunk of assistant text.
type DeltaEvent struct {
	Text string
}

// ToolCallsEvent announces the fully assembled tool calls for a step,
// emitted before any of them execute.
type ToolCallsEvent struct {
	Calls []llm.ToolCall
}

// ToolStartEvent marks the beginning of a single tool execution.
type ToolStartEvent struct {
	Tool        string
	CallID      string
	ArgsPreview string
}

// ToolEndEvent marks the completion of a single tool execution.
type ToolEndEvent struct {
	Tool     string
	CallID   string
	OK       bool
	Duration time.Duration
}

// ToolOutputEvent carries the serialized result handed back to the model,
// together with the invocation's outcome for persistence.
type ToolOutputEvent struct {
	Tool        string
	CallID      string
	Content     string
	OK          bool
	Duration    time.Duration
	ArgsPreview string
}

// UsageEvent carries provider-reported token usage for one model call.
type UsageEvent struct {
	Usage llm.Usage
}

func (DeltaEvent) isEvent()      {}
func (ToolCallsEvent) isEvent()  {}
func (ToolStartEvent) isEvent()  {}
func (ToolEndEvent) isEvent()    {}
func (ToolOutputEvent) isEvent() {}
func (UsageEvent) isEvent()      {}

// EventSink receives run events. Implementations must not block for long;
// they are called inline from the streaming loop.
type EventSink func(Event)
