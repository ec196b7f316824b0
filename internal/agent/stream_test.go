package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/ochre/internal/llm"
)

func TestStreamOnceAssemblesInterleavedToolCalls(t *testing.T) {
	// Fragments for two calls arrive interleaved; assembly must key on the
	// positional index, not arrival order.
	client := &mockStreamClient{responses: [][]llm.Frame{{
		toolCallFrame(1, "call_b", "fs_write", ""),
		toolCallFrame(0, "call_a", "fs_read", `{"path":`),
		toolCallFrame(1, "", "", `{"path":"/fs/todos/today.md",`),
		toolCallFrame(0, "", "", `"/fs/mnt/notes/a.md"}`),
		toolCallFrame(1, "", "", `"content":"x"}`),
		finishFrame("tool_calls"),
	}}}

	res, err := streamOnce(context.Background(), client,
		llm.ChatRequest{Model: "test/model"}, nil, NewCancelToken())
	require.NoError(t, err)

	require.Len(t, res.ToolCalls, 2)
	assert.Equal(t, "call_a", res.ToolCalls[0].ID)
	assert.Equal(t, "fs_read", res.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"path":"/fs/mnt/notes/a.md"}`, res.ToolCalls[0].Function.Arguments)

	assert.Equal(t, "call_b", res.ToolCalls[1].ID)
	assert.Equal(t, "fs_write", res.ToolCalls[1].Function.Name)
	assert.Equal(t, `{"path":"/fs/todos/today.md","content":"x"}`, res.ToolCalls[1].Function.Arguments)

	assert.Equal(t, "tool_calls", res.FinishReason)
}

func TestStreamOnceDropsFragmentsWithoutIndex(t *testing.T) {
	client := &mockStreamClient{responses: [][]llm.Frame{{
		{Choices: []llm.FrameChoice{{Delta: llm.FrameDelta{
			ToolCalls: []llm.ToolCallDelta{{
				// No index: cannot be assigned to a slot.
				ID:       "call_x",
				Function: llm.FunctionCallDelta{Name: "orphan", Arguments: "{}"},
			}},
		}}}},
		toolCallFrame(0, "call_ok", "real", "{}"),
		finishFrame("tool_calls"),
	}}}

	res, err := streamOnce(context.Background(), client,
		llm.ChatRequest{Model: "test/model"}, nil, NewCancelToken())
	require.NoError(t, err)

	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "call_ok", res.ToolCalls[0].ID)
}

func TestStreamOnceNameSetOnce(t *testing.T) {
	// A later fragment repeating an empty name must not clear the slot.
	client := &mockStreamClient{responses: [][]llm.Frame{{
		toolCallFrame(0, "call_1", "fs_list", ""),
		toolCallFrame(0, "", "", `{"path":"/fs"}`),
		finishFrame("tool_calls"),
	}}}

	res, err := streamOnce(context.Background(), client,
		llm.ChatRequest{Model: "test/model"}, nil, NewCancelToken())
	require.NoError(t, err)

	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "fs_list", res.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"path":"/fs"}`, res.ToolCalls[0].Function.Arguments)
}

func TestStreamOnceTextAndUsage(t *testing.T) {
	client := &mockStreamClient{responses: [][]llm.Frame{{
		textFrame("a"),
		textFrame("b"),
		{Usage: &llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}},
	}}}

	var deltas []string
	res, err := streamOnce(context.Background(), client,
		llm.ChatRequest{Model: "test/model"},
		func(s string) { deltas = append(deltas, s) },
		NewCancelToken())
	require.NoError(t, err)

	assert.Equal(t, "ab", res.Text)
	assert.Equal(t, []string{"a", "b"}, deltas)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 5, res.Usage.TotalTokens)
}

// blockingStreamClient serves a stream that produces no frames until its
// context is cancelled.
type blockingStreamClient struct{}

func (c *blockingStreamClient) Complete(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, context.Canceled
}

func (c *blockingStreamClient) Stream(ctx context.Context, _ llm.ChatRequest) (<-chan llm.Frame, error) {
	ch := make(chan llm.Frame)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (c *blockingStreamClient) Name() string { return "blocking" }

func TestStreamOnceCancelWhileWaitingForFrames(t *testing.T) {
	cancel := NewCancelToken()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	type outcome struct {
		res StreamResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := streamOnce(ctx, &blockingStreamClient{},
			llm.ChatRequest{Model: "test/model"}, nil, cancel)
		done <- outcome{res, err}
	}()

	// No frame will ever arrive; the token alone must end the stream.
	cancel.Cancel()
	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.True(t, out.res.Cancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel not observed while waiting for frames")
	}
}

func TestStreamOnceCancelledReturnsPartial(t *testing.T) {
	cancel := NewCancelToken()
	client := &mockStreamClient{responses: [][]llm.Frame{{
		textFrame("keep"),
		textFrame("drop"),
	}}}

	res, err := streamOnce(context.Background(), client,
		llm.ChatRequest{Model: "test/model"},
		func(string) { cancel.Cancel() },
		cancel)
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.Equal(t, "keep", res.Text)
}
