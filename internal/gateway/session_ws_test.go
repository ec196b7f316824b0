package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/ochre/internal/llm"
)

// wsScriptClient replays canned frame sequences, one per Stream call.
type wsScriptClient struct {
	mu        sync.Mutex
	responses [][]llm.Frame
	calls     int
}

func (c *wsScriptClient) Complete(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *wsScriptClient) Stream(context.Context, llm.ChatRequest) (<-chan llm.Frame, error) {
	c.mu.Lock()
	idx := c.calls
	c.calls++
	c.mu.Unlock()
	if idx >= len(c.responses) {
		return nil, fmt.Errorf("unexpected stream call %d", idx)
	}
	ch := make(chan llm.Frame, len(c.responses[idx]))
	for _, f := range c.responses[idx] {
		ch <- f
	}
	close(ch)
	return ch, nil
}

func (c *wsScriptClient) Name() string { return "script" }

// outbound is the wire shape of a server-to-client envelope.
type outbound struct {
	Type      string         `json:"type"`
	RequestID string         `json:"requestId"`
	Payload   map[string]any `json:"payload"`
}

func (h *testHarness) dialSession(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws/sessions/" + sessionID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func (h *testHarness) createSession(t *testing.T) string {
	t.Helper()
	sess, err := h.sessions.CreateSession("ws test")
	require.NoError(t, err)
	return sess.ID
}

func readUntil(t *testing.T, conn *websocket.Conn, eventType string) (outbound, []outbound) {
	t.Helper()
	var seen []outbound
	for {
		var msg outbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v (saw %v)", eventType, err, typesOf(seen))
		}
		seen = append(seen, msg)
		if msg.Type == eventType {
			return msg, seen
		}
	}
}

func typesOf(msgs []outbound) []string {
	var out []string
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestWSRejectsUnknownSession(t *testing.T) {
	h := newTestHarness(t, nil)
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws/sessions/no-such-session"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestWSHelloGetsSnapshot(t *testing.T) {
	h := newTestHarness(t, nil)
	id := h.createSession(t)
	conn := h.dialSession(t, id)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "hello"}))

	msg, _ := readUntil(t, conn, "snapshot")
	assert.Equal(t, id, msg.Payload["sessionId"])
	assert.Nil(t, msg.Payload["activeRun"])
}

func TestWSChatSendStreamsRun(t *testing.T) {
	h := newTestHarness(t, [][]llm.Frame{
		{textFrame("Hi "), textFrame("there"), finishFrame("stop")},
	})
	id := h.createSession(t)
	conn := h.dialSession(t, id)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":      "chat.send",
		"requestId": "req1",
		"payload":   map[string]any{"content": "hello"},
	}))

	done, seen := readUntil(t, conn, "chat.done")
	assert.Equal(t, "req1", done.RequestID)
	assert.Equal(t, "stop", done.Payload["stopReason"])

	types := typesOf(seen)
	assert.Equal(t, "chat.started", types[0])
	assert.Contains(t, types, "chat.delta")

	// Transcript is durable after the run.
	msgs, err := h.sessions.ListMessages(id, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi there", msgs[1].Content)
}

func TestWSReconnectSnapshotIncludesTranscript(t *testing.T) {
	h := newTestHarness(t, [][]llm.Frame{
		{textFrame("answer"), finishFrame("stop")},
	})
	id := h.createSession(t)

	conn := h.dialSession(t, id)
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":      "chat.send",
		"requestId": "req1",
		"payload":   map[string]any{"content": "question"},
	}))
	readUntil(t, conn, "chat.done")
	conn.Close()

	// A fresh connection replays the transcript through hello.
	conn2 := h.dialSession(t, id)
	require.NoError(t, conn2.WriteJSON(map[string]any{"type": "hello"}))
	msg, _ := readUntil(t, conn2, "snapshot")
	messages := msg.Payload["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "answer", messages[1].(map[string]any)["content"])
}

func TestWSUnknownTypeGetsRunError(t *testing.T) {
	h := newTestHarness(t, nil)
	id := h.createSession(t)
	conn := h.dialSession(t, id)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus", "requestId": "r9"}))

	msg, _ := readUntil(t, conn, "run.error")
	assert.Equal(t, "r9", msg.RequestID)
	assert.Contains(t, msg.Payload["error"], "unknown message type")
}

func TestWSChatSendRequiresRequestID(t *testing.T) {
	h := newTestHarness(t, nil)
	id := h.createSession(t)
	conn := h.dialSession(t, id)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "chat.send",
		"payload": map[string]any{"content": "hello"},
	}))

	msg, _ := readUntil(t, conn, "run.error")
	assert.Contains(t, msg.Payload["error"], "missing requestId")
}

func TestHubFanOutToMultipleClients(t *testing.T) {
	h := newTestHarness(t, [][]llm.Frame{
		{textFrame("broadcast"), finishFrame("stop")},
	})
	id := h.createSession(t)

	conn1 := h.dialSession(t, id)
	conn2 := h.dialSession(t, id)
	require.Equal(t, 2, h.hub.Count(id))

	require.NoError(t, conn1.WriteJSON(map[string]any{
		"type":      "chat.send",
		"requestId": "req1",
		"payload":   map[string]any{"content": "hello"},
	}))

	// Both connections observe the full run.
	done1, _ := readUntil(t, conn1, "chat.done")
	done2, _ := readUntil(t, conn2, "chat.done")
	assert.Equal(t, "req1", done1.RequestID)
	assert.Equal(t, "req1", done2.RequestID)
}
