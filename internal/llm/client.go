// Package llm provides a client for OpenAI-compatible chat completion APIs.
//
// Streaming responses arrive as Server-Sent Events carrying incremental
// deltas. Tool call fragments are keyed by positional index and must be
// reassembled by the consumer; this package delivers frames as-is.
package llm

import (
	"context"
	"encoding/json"
)

// Role constants for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single turn in a conversation, in the OpenAI wire shape.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a completed tool invocation attached to an assistant message.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the name and JSON-encoded arguments of a tool call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool the model can invoke.
type ToolDefinition struct {
	Type     string             `json:"type"` // always "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the function portion of a tool definition.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatRequest is the input to a Complete or Stream call.
type ChatRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

// Usage tracks token consumption reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the result of a non-streaming completion.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// Frame is a single parsed SSE chunk from a streaming completion.
//
// Err is set on hard transport failures (connect error, non-2xx status,
// broken stream). A frame with Err set is always the last frame sent.
type Frame struct {
	ID      string        `json:"id,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []FrameChoice `json:"choices,omitempty"`
	Usage   *Usage        `json:"usage,omitempty"`

	Err error `json:"-"`
}

// FrameChoice is one choice within a streaming chunk.
type FrameChoice struct {
	Index        int        `json:"index"`
	Delta        FrameDelta `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// FrameDelta carries the incremental content of a chunk.
type FrameDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is a fragment of a tool call. Index identifies the slot;
// ID and the function name arrive once, arguments arrive as concatenable
// fragments across frames.
type ToolCallDelta struct {
	Index    *int              `json:"index,omitempty"`
	ID       string            `json:"id,omitempty"`
	Type     string            `json:"type,omitempty"`
	Function FunctionCallDelta `json:"function"`
}

// FunctionCallDelta is the function portion of a tool call fragment.
type FunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Client is the interface chat completion providers implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Stream sends a request and returns a channel of parsed frames.
	// The channel is closed when the stream ends. A hard failure is
	// delivered as a final frame with Err set.
	Stream(ctx context.Context, req ChatRequest) (<-chan Frame, error)

	// Name returns the provider name.
	Name() string
}
