// Package conversation owns the per-session run lifecycle: one in-flight
// generation at a time, deterministic supersede-and-cancel, durable
// transcript persistence, and an ordered event stream for live clients.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/ochre/internal/agent"
	"github.com/soyeahso/ochre/internal/domain"
	"github.com/soyeahso/ochre/internal/llm"
	"github.com/soyeahso/ochre/internal/logging"
	"github.com/soyeahso/ochre/internal/store"
)

const (
	snapshotMessageLimit = 400
	outputPreviewLimit   = 20_000
)

// CancelReasonNewMessage marks a run superseded by a newer submission.
const CancelReasonNewMessage = "new_message"

// openAssistant is the not-yet-durable assistant segment of a running run.
type openAssistant struct {
	messageID string
	buf       strings.Builder
}

// activeRun is the single in-flight run of a session.
type activeRun struct {
	requestID string
	model     string
	status    domain.RunStatus
	startedAt time.Time
	endedAt   time.Time
	cancel    *agent.CancelToken
	done      chan struct{} // closed when the run goroutine exits
	open      *openAssistant
	lastMsgID string // last assistant segment id, for chat.done
}

// Conversation serializes submissions for one session and translates run
// progress into transcript writes and delivery events.
type Conversation struct {
	sessionID    string
	store        store.SessionStore
	runner       *agent.Runner
	publish      Publisher
	defaultModel func() string
	baseMessages func(sessionID string) ([]llm.Message, error)
	log          *logging.Logger

	// submitMu serializes Submit and Cancel end to end so the cancelled
	// notification of a superseded run always precedes the next started
	// acknowledgement.
	submitMu sync.Mutex

	// mu guards the fields below; event callbacks and snapshots take it.
	mu     sync.Mutex
	active *activeRun
	seen   map[string]domain.RunStatus
}

// Deps are the collaborators a Conversation needs.
type Deps struct {
	Store        store.SessionStore
	Runner       *agent.Runner
	Publisher    Publisher
	DefaultModel func() string
	// BaseMessages builds the model-ready history, including the system
	// prompt, for a new run.
	BaseMessages func(sessionID string) ([]llm.Message, error)
	Log          *logging.Logger
}

// New creates the orchestrator for one session.
func New(sessionID string, deps Deps) *Conversation {
	return &Conversation{
		sessionID:    sessionID,
		store:        deps.Store,
		runner:       deps.Runner,
		publish:      deps.Publisher,
		defaultModel: deps.DefaultModel,
		baseMessages: deps.BaseMessages,
		log:          deps.Log.Sub("conversation"),
		seen:         make(map[string]domain.RunStatus),
	}
}

// Submit accepts a user message and starts a run. Submissions are
// idempotent on requestID: a replay re-acks without starting new work. A
// different in-flight run is cancelled, and its cancelled notification is
// delivered before the new run's started acknowledgement.
func (c *Conversation) Submit(requestID, content, model string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	if _, dup := c.seen[requestID]; dup {
		// Idempotent replay: re-ack with the open segment id, if any.
		var msgID *string
		if c.active != nil && c.active.requestID == requestID && c.active.open != nil {
			id := c.active.open.messageID
			msgID = &id
		}
		c.mu.Unlock()
		c.publish.Publish(c.sessionID, Event{
			Type:      TypeChatStarted,
			RequestID: requestID,
			Payload:   StartedPayload{MessageID: msgID},
		})
		return nil
	}
	supersede := c.active != nil && c.active.status == domain.RunRunning
	c.mu.Unlock()

	if supersede {
		c.cancelActive(CancelReasonNewMessage)
	}

	chosenModel := model
	if chosenModel == "" {
		chosenModel = c.defaultModel()
	}

	if _, err := c.store.AddMessage(c.sessionID, "user", content, map[string]any{
		"requestId": requestID,
	}); err != nil {
		return fmt.Errorf("persisting user message: %w", err)
	}

	ar := &activeRun{
		requestID: requestID,
		model:     chosenModel,
		status:    domain.RunRunning,
		startedAt: time.Now(),
		cancel:    agent.NewCancelToken(),
		done:      make(chan struct{}),
	}

	c.mu.Lock()
	c.active = ar
	c.seen[requestID] = domain.RunRunning
	c.mu.Unlock()

	// Ack acceptance; the assistant message id arrives with the first token.
	c.publish.Publish(c.sessionID, Event{
		Type:      TypeChatStarted,
		RequestID: requestID,
		Payload:   StartedPayload{MessageID: nil},
	})

	go c.runGeneration(ar)
	return nil
}

// Cancel cancels the in-flight run, if any. It returns true when a run was
// actually cancelled.
func (c *Conversation) Cancel(reason string) bool {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()
	return c.cancelActive(reason)
}

// cancelActive stops the running run, waits for its goroutine, flushes the
// open segment as cancelled, and emits the run.cancelled notification.
// Callers hold submitMu.
func (c *Conversation) cancelActive(reason string) bool {
	c.mu.Lock()
	ar := c.active
	if ar == nil || ar.status != domain.RunRunning {
		c.mu.Unlock()
		return false
	}
	ar.cancel.Cancel()
	c.mu.Unlock()

	// The goroutine observes the token, skips its own terminal transition,
	// and exits; tool calls already past their check point run to
	// completion first.
	<-ar.done

	c.mu.Lock()
	c.flushOpenLocked(ar, map[string]any{domain.MetaCancelled: true, "streaming": false})
	ar.status = domain.RunCancelled
	ar.endedAt = time.Now()
	c.seen[ar.requestID] = domain.RunCancelled
	if c.active == ar {
		c.active = nil
	}
	c.mu.Unlock()

	note := "Generation cancelled."
	if reason == CancelReasonNewMessage {
		note = "Generation cancelled (new user message)."
	}
	if _, err := c.store.AddMessage(c.sessionID, "system", note, map[string]any{
		"type":      "cancel",
		"requestId": ar.requestID,
		"reason":    reason,
	}); err != nil {
		c.log.Error().Err(err).Msg("persisting cancel note failed")
	}

	c.publish.Publish(c.sessionID, Event{
		Type:      TypeSystemMessage,
		RequestID: ar.requestID,
		Payload:   SystemMessagePayload{Content: note},
	})
	c.publish.Publish(c.sessionID, Event{
		Type:      TypeRunCancelled,
		RequestID: ar.requestID,
		Payload:   CancelledPayload{Reason: reason},
	})
	return true
}

// runGeneration is the run goroutine: it drives the tool loop and performs
// the terminal transition for natural completion and errors. Cancellation
// transitions are performed by the canceller.
func (c *Conversation) runGeneration(ar *activeRun) {
	defer close(ar.done)

	// The run context aborts the upstream read when the cancel token
	// fires, so the canceller never waits on a quiet stream. It also
	// carries the session identity for tool execution.
	ctx, cancelCtx := context.WithCancel(agent.WithSessionID(context.Background(), c.sessionID))
	defer cancelCtx()
	go func() {
		select {
		case <-ar.cancel.Done():
			cancelCtx()
		case <-ctx.Done():
		}
	}()

	base, err := c.baseMessages(c.sessionID)
	if err != nil {
		c.finishError(ar, err)
		return
	}

	result, err := c.runner.RunLoop(ctx, base, ar.model, func(ev agent.Event) {
		c.onAgentEvent(ar, ev)
	}, ar.cancel)
	if err != nil {
		c.finishError(ar, err)
		return
	}
	if result.Cancelled || ar.cancel.Cancelled() {
		return
	}

	c.mu.Lock()
	if c.active != ar || ar.cancel.Cancelled() {
		c.mu.Unlock()
		return
	}
	c.flushOpenLocked(ar, map[string]any{"streaming": false})
	ar.status = domain.RunDone
	ar.endedAt = time.Now()
	c.seen[ar.requestID] = domain.RunDone
	c.active = nil
	var msgID *string
	if ar.lastMsgID != "" {
		id := ar.lastMsgID
		msgID = &id
	}
	c.mu.Unlock()

	c.publish.Publish(c.sessionID, Event{
		Type:      TypeChatDone,
		RequestID: ar.requestID,
		Payload:   DonePayload{MessageID: msgID, StopReason: result.StopReason},
	})
}

// finishError performs the error terminal transition. Cancelled runs never
// reach it: the canceller owns their transition.
func (c *Conversation) finishError(ar *activeRun, runErr error) {
	if ar.cancel.Cancelled() {
		return
	}

	c.mu.Lock()
	if c.active != ar || ar.cancel.Cancelled() {
		c.mu.Unlock()
		return
	}
	c.flushOpenLocked(ar, map[string]any{"streaming": false, "error": true})
	ar.status = domain.RunError
	ar.endedAt = time.Now()
	c.seen[ar.requestID] = domain.RunError
	c.active = nil
	c.mu.Unlock()

	c.log.Error().Err(runErr).Str("requestId", ar.requestID).Msg("run failed")

	note := fmt.Sprintf("Chat error: %v", runErr)
	if _, err := c.store.AddMessage(c.sessionID, "system", note, map[string]any{
		"type":      "error",
		"requestId": ar.requestID,
	}); err != nil {
		c.log.Error().Err(err).Msg("persisting error note failed")
	}

	c.publish.Publish(c.sessionID, Event{
		Type:      TypeSystemMessage,
		RequestID: ar.requestID,
		Payload:   SystemMessagePayload{Content: note},
	})
	c.publish.Publish(c.sessionID, Event{
		Type:      TypeRunError,
		RequestID: ar.requestID,
		Payload:   ErrorPayload{Error: runErr.Error()},
	})
}

// onAgentEvent maps tool-loop progress onto persistence and delivery.
// Events are handled exhaustively; an unknown kind is a programming error.
func (c *Conversation) onAgentEvent(ar *activeRun, ev agent.Event) {
	switch e := ev.(type) {
	case agent.DeltaEvent:
		c.onDelta(ar, e.Text)
	case agent.ToolCallsEvent:
		c.onToolCalls(ar, e)
	case agent.ToolStartEvent:
		c.publishRunning(ar, Event{
			Type:      TypeToolStart,
			RequestID: ar.requestID,
			Payload:   ToolStartPayload{Tool: e.Tool, TcID: e.CallID, ArgsPreview: e.ArgsPreview},
		})
	case agent.ToolEndEvent:
		c.publishRunning(ar, Event{
			Type:      TypeToolEnd,
			RequestID: ar.requestID,
			Payload:   ToolEndPayload{Tool: e.Tool, TcID: e.CallID, OK: e.OK, DurationMs: e.Duration.Milliseconds()},
		})
	case agent.ToolOutputEvent:
		c.onToolOutput(ar, e)
	case agent.UsageEvent:
		c.publishRunning(ar, Event{
			Type:      TypeChatUsage,
			RequestID: ar.requestID,
			Payload:   UsagePayload{Usage: e.Usage},
		})
	default:
		c.log.Error().Str("requestId", ar.requestID).Msgf("unhandled agent event %T", ev)
	}
}

// publishRunning delivers an event only while the run is still current.
func (c *Conversation) publishRunning(ar *activeRun, ev Event) {
	c.mu.Lock()
	current := c.active == ar && ar.status == domain.RunRunning
	c.mu.Unlock()
	if current {
		c.publish.Publish(c.sessionID, ev)
	}
}

// onDelta buffers a token and delivers it. The assistant row is created on
// the first token; subsequent tokens stay in memory until a flush point.
func (c *Conversation) onDelta(ar *activeRun, text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	if c.active != ar || ar.status != domain.RunRunning {
		c.mu.Unlock()
		return
	}
	first := ar.open == nil
	if first {
		msg, err := c.store.AddMessage(c.sessionID, "assistant", "", map[string]any{
			"streaming": true,
			"requestId": ar.requestID,
			"segment":   true,
		})
		if err != nil {
			c.mu.Unlock()
			c.log.Error().Err(err).Msg("creating assistant segment failed")
			return
		}
		ar.open = &openAssistant{messageID: msg.ID}
		ar.lastMsgID = msg.ID
	}
	ar.open.buf.WriteString(text)
	msgID := ar.open.messageID
	c.mu.Unlock()

	if first {
		c.publish.Publish(c.sessionID, Event{
			Type:      TypeChatStarted,
			RequestID: ar.requestID,
			Payload:   StartedPayload{MessageID: &msgID},
		})
	}
	c.publish.Publish(c.sessionID, Event{
		Type:      TypeChatDelta,
		RequestID: ar.requestID,
		Payload:   DeltaPayload{Text: text, MessageID: msgID},
	})
}

// onToolCalls finalizes the open segment at the tool boundary and persists
// the assistant tool-call message so reconstructed histories keep the link
// between calls and their results.
func (c *Conversation) onToolCalls(ar *activeRun, e agent.ToolCallsEvent) {
	c.mu.Lock()
	if c.active != ar || ar.status != domain.RunRunning {
		c.mu.Unlock()
		return
	}
	c.flushOpenLocked(ar, map[string]any{"streaming": false})
	c.mu.Unlock()

	calls := make([]map[string]any, 0, len(e.Calls))
	for _, tc := range e.Calls {
		calls = append(calls, map[string]any{
			"id":   tc.ID,
			"type": tc.Type,
			"function": map[string]any{
				"name":      tc.Function.Name,
				"arguments": tc.Function.Arguments,
			},
		})
	}
	if _, err := c.store.AddMessage(c.sessionID, "assistant", "", map[string]any{
		domain.MetaToolCalls: calls,
		"requestId":          ar.requestID,
	}); err != nil {
		c.log.Error().Err(err).Msg("persisting tool calls failed")
	}

	c.publishRunning(ar, Event{
		Type:      TypeToolCalls,
		RequestID: ar.requestID,
		Payload:   ToolCallsPayload{ToolCalls: e.Calls},
	})
}

// onToolOutput persists the full tool result and delivers a bounded preview.
func (c *Conversation) onToolOutput(ar *activeRun, e agent.ToolOutputEvent) {
	c.mu.Lock()
	if c.active != ar || ar.status != domain.RunRunning {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if _, err := c.store.AddMessage(c.sessionID, "tool", e.Content, map[string]any{
		domain.MetaToolCallID: e.CallID,
		domain.MetaName:       e.Tool,
		"requestId":           ar.requestID,
		"ok":                  e.OK,
		"durationMs":          e.Duration.Milliseconds(),
		"argsPreview":         e.ArgsPreview,
	}); err != nil {
		c.log.Error().Err(err).Msg("persisting tool output failed")
	}

	preview, truncated := truncate(e.Content, outputPreviewLimit)
	c.publishRunning(ar, Event{
		Type:      TypeToolOutput,
		RequestID: ar.requestID,
		Payload:   ToolOutputPayload{Tool: e.Tool, TcID: e.CallID, Content: preview, Truncated: truncated},
	})
}

// flushOpenLocked makes the open segment durable and clears it. Callers
// hold c.mu.
func (c *Conversation) flushOpenLocked(ar *activeRun, meta map[string]any) {
	if ar.open == nil {
		return
	}
	meta["requestId"] = ar.requestID
	meta["segment"] = true
	if err := c.store.UpdateMessage(ar.open.messageID, ar.open.buf.String(), meta); err != nil {
		c.log.Error().Err(err).Str("messageId", ar.open.messageID).Msg("flushing assistant segment failed")
	}
	ar.open = nil
}

// Snapshot is the reconnect view: recent transcript plus in-flight state.
type Snapshot struct {
	SessionID string           `json:"sessionId"`
	Messages  []domain.Message `json:"messages"`
	ActiveRun *domain.RunView  `json:"activeRun"`
	Model     string           `json:"model,omitempty"`
}

// SnapshotView renders the reconnect snapshot. A connecting client sees any
// buffered not-yet-durable assistant text without waiting for the next
// token.
func (c *Conversation) SnapshotView() (*Snapshot, error) {
	c.mu.Lock()
	var view *domain.RunView
	var model string
	if ar := c.active; ar != nil {
		view = &domain.RunView{
			Status:    ar.status,
			RequestID: ar.requestID,
		}
		model = ar.model
		if ar.open != nil {
			view.MessageID = ar.open.messageID
			view.Partial = ar.open.buf.String()
		}
	}
	c.mu.Unlock()

	msgs, err := c.store.ListMessages(c.sessionID, snapshotMessageLimit)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		SessionID: c.sessionID,
		Messages:  msgs,
		ActiveRun: view,
		Model:     model,
	}, nil
}

// RunStatus reports the last-known status for a request id.
func (c *Conversation) RunStatus(requestID string) (domain.RunStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.seen[requestID]
	return st, ok
}

func truncate(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	return s[:max] + fmt.Sprintf("\n... (truncated, %d chars omitted)", len(s)-max), true
}
