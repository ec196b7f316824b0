package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/soyeahso/ochre/internal/llm"
)

// Tool is a capability the model can invoke during a run.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// InputSchema returns the JSON Schema for the tool's arguments.
	InputSchema() string

	// Execute runs the tool with parsed arguments and returns a
	// JSON-serializable result.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// StructuredError lets a tool return a structured JSON payload as its
// failure content instead of a plain error string, while still marking
// the invocation as failed.
type StructuredError struct {
	Payload map[string]any
}

func (e *StructuredError) Error() string {
	if errVal, ok := e.Payload["error"].(map[string]any); ok {
		if msg, ok := errVal["message"].(string); ok {
			return msg
		}
	}
	return "tool error"
}

// ToolRegistry holds available tools with compiled argument schemas.
// Registration order is preserved so tool definitions sent to the model
// are stable across requests.
type ToolRegistry struct {
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
	order   []string
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool, compiling its input schema. Registering a tool
// with an invalid schema is a programming error.
func (r *ToolRegistry) Register(t Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	schema, err := jsonschema.CompileString(name+".schema.json", t.InputSchema())
	if err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", name, err)
	}
	r.tools[name] = t
	r.schemas[name] = schema
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register that panics on error, for wiring at startup.
func (r *ToolRegistry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns wire-ready tool definitions in registration order.
func (r *ToolRegistry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Type: "function",
			Function: llm.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  json.RawMessage(t.InputSchema()),
			},
		})
	}
	return defs
}

type sessionIDKey struct{}

// WithSessionID tags a run context with the session the run belongs to.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext returns the session id of the surrounding run, or
// an empty string outside one.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// Dispatch validates raw JSON arguments against the tool's schema and
// executes it. Unknown tools and invalid arguments are returned as errors
// so the caller can turn them into tool-result messages.
func (r *ToolRegistry) Dispatch(ctx context.Context, name, rawArgs string) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	if rawArgs == "" {
		rawArgs = "{}"
	}
	var parsed any
	if err := json.Unmarshal([]byte(rawArgs), &parsed); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if err := r.schemas[name].Validate(parsed); err != nil {
		return nil, fmt.Errorf("tool arguments failed validation: %w", err)
	}

	args, ok := parsed.(map[string]any)
	if !ok {
		args = map[string]any{"args": parsed}
	}
	return t.Execute(ctx, args)
}
