// Package agent drives the streaming tool-calling loop against an
// OpenAI-compatible model.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/soyeahso/ochre/internal/llm"
	"github.com/soyeahso/ochre/internal/logging"
)

const argsPreviewLimit = 200

// Stop reasons reported in LoopResult.
const (
	StopNormal    = "stop"
	StopStepLimit = "step_limit"
)

// RunnerConfig configures the agent runner.
type RunnerConfig struct {
	Model       string
	MaxSteps    int
	MaxTokens   int
	Temperature *float64
}

// LoopResult is the outcome of a full tool loop.
type LoopResult struct {
	// Text is the assistant text accumulated across all steps.
	Text string
	// Messages is the full message list after the loop, including
	// assistant tool-call messages and tool results, for persistence.
	Messages []llm.Message
	// StopReason is StopNormal or StopStepLimit. Empty when cancelled.
	StopReason string
	// Cancelled is set when the loop stopped on the cancel token.
	Cancelled bool
	// Usage is the summed token usage across model calls.
	Usage llm.Usage
}

// Runner executes streaming tool loops.
type Runner struct {
	cfg    RunnerConfig
	client llm.Client
	tools  *ToolRegistry
	log    *logging.Logger
}

// NewRunner creates an agent runner.
func NewRunner(cfg RunnerConfig, client llm.Client, tools *ToolRegistry, log *logging.Logger) *Runner {
	if cfg.MaxSteps < 1 {
		cfg.MaxSteps = 8
	}
	return &Runner{
		cfg:    cfg,
		client: client,
		tools:  tools,
		log:    log.Sub("agent"),
	}
}

// RunLoop streams model responses and executes tool calls until the model
// produces a final answer, the step budget is exhausted, or the cancel
// token fires.
//
// Tool failures never abort the loop. They are serialized into the tool
// result message so the model can react.
func (r *Runner) RunLoop(ctx context.Context, base []llm.Message, model string, sink EventSink, cancel *CancelToken) (*LoopResult, error) {
	if model == "" {
		model = r.cfg.Model
	}

	msgs := make([]llm.Message, len(base))
	copy(msgs, base)

	res := &LoopResult{}
	var finalText []byte

	for step := 0; step < r.cfg.MaxSteps; step++ {
		req := llm.ChatRequest{
			Model:       model,
			Messages:    msgs,
			Tools:       r.tools.Definitions(),
			Temperature: r.cfg.Temperature,
			MaxTokens:   r.cfg.MaxTokens,
		}

		stepRes, err := streamOnce(ctx, r.client, req, func(text string) {
			finalText = append(finalText, text...)
			sink(DeltaEvent{Text: text})
		}, cancel)
		if err != nil {
			return nil, err
		}

		if stepRes.Usage != nil {
			res.Usage.PromptTokens += stepRes.Usage.PromptTokens
			res.Usage.CompletionTokens += stepRes.Usage.CompletionTokens
			res.Usage.TotalTokens += stepRes.Usage.TotalTokens
			sink(UsageEvent{Usage: *stepRes.Usage})
		}

		if stepRes.Cancelled {
			res.Cancelled = true
			break
		}

		if len(stepRes.ToolCalls) > 0 {
			r.log.Info().Int("toolCalls", len(stepRes.ToolCalls)).Int("step", step).Msg("executing tool calls")
			sink(ToolCallsEvent{Calls: stepRes.ToolCalls})

			msgs = append(msgs, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   stepRes.Text,
				ToolCalls: stepRes.ToolCalls,
			})

			for _, tc := range stepRes.ToolCalls {
				msgs = append(msgs, r.executeToolCall(ctx, tc, sink))
			}
			continue
		}

		// No tool calls: final answer.
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: stepRes.Text})
		res.StopReason = StopNormal
		break
	}

	if !res.Cancelled && res.StopReason == "" {
		res.StopReason = StopStepLimit
		r.log.Warn().Int("maxSteps", r.cfg.MaxSteps).Msg("tool loop hit step limit")
	}

	res.Text = string(finalText)
	res.Messages = msgs
	return res, nil
}

// executeToolCall dispatches one tool call and returns the tool message
// to feed back to the model.
func (r *Runner) executeToolCall(ctx context.Context, tc llm.ToolCall, sink EventSink) llm.Message {
	name := tc.Function.Name
	rawArgs := tc.Function.Arguments
	if rawArgs == "" {
		rawArgs = "{}"
	}

	preview := rawArgs
	if len(preview) > argsPreviewLimit {
		preview = preview[:argsPreviewLimit]
	}
	sink(ToolStartEvent{Tool: name, CallID: tc.ID, ArgsPreview: preview})

	start := time.Now()
	ok := true
	var content string

	result, err := r.tools.Dispatch(ctx, name, rawArgs)
	switch e := err.(type) {
	case nil:
		content = marshalToolContent(map[string]any{"ok": true, "result": result})
	case *StructuredError:
		ok = false
		content = marshalToolContent(e.Payload)
	default:
		ok = false
		content = marshalToolContent(map[string]any{"ok": false, "error": err.Error()})
	}

	elapsed := time.Since(start)
	if err != nil {
		r.log.Warn().Str("tool", name).Err(err).Dur("duration", elapsed).Msg("tool call failed")
	} else {
		r.log.Debug().Str("tool", name).Dur("duration", elapsed).Msg("tool call completed")
	}

	sink(ToolEndEvent{Tool: name, CallID: tc.ID, OK: ok, Duration: elapsed})
	sink(ToolOutputEvent{Tool: name, CallID: tc.ID, Content: content, OK: ok, Duration: elapsed, ArgsPreview: preview})

	return llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: tc.ID,
		Name:       name,
		Content:    content,
	}
}

func marshalToolContent(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		fallback, _ := json.Marshal(map[string]any{"ok": false, "error": err.Error()})
		return string(fallback)
	}
	return string(data)
}
