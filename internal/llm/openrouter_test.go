package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")

		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n", l)
		}
	}))
}

func collect(t *testing.T, ch <-chan Frame) []Frame {
	t.Helper()
	var out []Frame
	for f := range ch {
		out = append(out, f)
	}
	return out
}

func TestStreamTextDeltas(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "sk-test")
	ch, err := c.Stream(context.Background(), ChatRequest{Model: "test/model"})
	require.NoError(t, err)

	frames := collect(t, ch)
	require.Len(t, frames, 3)
	assert.Equal(t, "Hel", frames[0].Choices[0].Delta.Content)
	assert.Equal(t, "lo", frames[1].Choices[0].Delta.Content)
	assert.Equal(t, "stop", frames[2].Choices[0].FinishReason)
	require.NotNil(t, frames[2].Usage)
	assert.Equal(t, 7, frames[2].Usage.TotalTokens)
}

func TestStreamToolCallDeltas(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"fs_read","arguments":""}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":"}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"/fs/todos\"}"}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "sk-test")
	ch, err := c.Stream(context.Background(), ChatRequest{Model: "test/model"})
	require.NoError(t, err)

	frames := collect(t, ch)
	require.Len(t, frames, 4)

	first := frames[0].Choices[0].Delta.ToolCalls[0]
	require.NotNil(t, first.Index)
	assert.Equal(t, 0, *first.Index)
	assert.Equal(t, "call_1", first.ID)
	assert.Equal(t, "fs_read", first.Function.Name)

	second := frames[1].Choices[0].Delta.ToolCalls[0]
	assert.Equal(t, `{"path":`, second.Function.Arguments)
	assert.Equal(t, "tool_calls", frames[3].Choices[0].FinishReason)
}

func TestStreamSkipsMalformedFrames(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {not json`,
		`data: {"choices":[{"index":0,"delta":{"content":"ok"}}]}`,
		`: comment line`,
		`data: [DONE]`,
	})
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "sk-test")
	ch, err := c.Stream(context.Background(), ChatRequest{Model: "test/model"})
	require.NoError(t, err)

	frames := collect(t, ch)
	require.Len(t, frames, 1)
	assert.Equal(t, "ok", frames[0].Choices[0].Delta.Content)
}

func TestStreamHTTPErrorYieldsErrFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "sk-bad")
	ch, err := c.Stream(context.Background(), ChatRequest{Model: "test/model"})
	require.NoError(t, err)

	frames := collect(t, ch)
	require.Len(t, frames, 1)
	require.Error(t, frames[0].Err)
	assert.Contains(t, frames[0].Err.Error(), "401")
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"gen-1","model":"test/model","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "sk-test")
	resp, err := c.Complete(context.Background(), ChatRequest{Model: "test/model"})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}
