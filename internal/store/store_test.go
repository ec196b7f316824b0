package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/ochre/internal/domain"
	"github.com/soyeahso/ochre/internal/llm"
	"github.com/soyeahso/ochre/internal/logging"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.New(nil, "silent", "json"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionCreateGetList(t *testing.T) {
	s := NewSessionStore(openTestDB(t))

	sess, err := s.CreateSession("my chat")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "my chat", sess.Title)
	assert.False(t, sess.CreatedAt.IsZero())

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)

	missing, err := s.GetSession("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := s.ListSessions(10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sess.ID, list[0].ID)
}

func TestMessageAppendAndList(t *testing.T) {
	s := NewSessionStore(openTestDB(t))
	sess, err := s.CreateSession("")
	require.NoError(t, err)

	_, err = s.AddMessage(sess.ID, "user", "hello", nil)
	require.NoError(t, err)
	_, err = s.AddMessage(sess.ID, "assistant", "hi there", map[string]any{"streaming": true})
	require.NoError(t, err)

	msgs, err := s.ListMessages(sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, true, msgs[1].Meta["streaming"])
}

func TestMessageOrderingIsStable(t *testing.T) {
	// Multiple messages within the same second must come back in
	// insertion order.
	s := NewSessionStore(openTestDB(t))
	sess, err := s.CreateSession("")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		_, err := s.AddMessage(sess.ID, role, string(rune('a'+i)), nil)
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 20)
	for i, m := range msgs {
		assert.Equal(t, string(rune('a'+i)), m.Content, "position %d", i)
	}
}

func TestUpdateMessageMergesMeta(t *testing.T) {
	s := NewSessionStore(openTestDB(t))
	sess, err := s.CreateSession("")
	require.NoError(t, err)

	msg, err := s.AddMessage(sess.ID, "assistant", "partial", map[string]any{
		domain.MetaToolCalls: []map[string]any{{"id": "call_1"}},
	})
	require.NoError(t, err)

	// Merging new meta must not drop the existing tool_calls.
	err = s.UpdateMessage(msg.ID, "partial text", map[string]any{domain.MetaCancelled: true})
	require.NoError(t, err)

	msgs, err := s.ListMessages(sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "partial text", msgs[0].Content)
	assert.Equal(t, true, msgs[0].Meta[domain.MetaCancelled])
	assert.NotNil(t, msgs[0].Meta[domain.MetaToolCalls])
}

func TestUpdateMessageContentOnly(t *testing.T) {
	s := NewSessionStore(openTestDB(t))
	sess, err := s.CreateSession("")
	require.NoError(t, err)

	msg, err := s.AddMessage(sess.ID, "assistant", "", map[string]any{"keep": "me"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateMessage(msg.ID, "final", nil))

	msgs, err := s.ListMessages(sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "final", msgs[0].Content)
	assert.Equal(t, "me", msgs[0].Meta["keep"])
}

func TestMessagesForModelFiltersOrphanToolOutputs(t *testing.T) {
	s := NewSessionStore(openTestDB(t))
	sess, err := s.CreateSession("")
	require.NoError(t, err)

	_, err = s.AddMessage(sess.ID, "user", "do something", nil)
	require.NoError(t, err)
	_, err = s.AddMessage(sess.ID, "assistant", "", map[string]any{
		domain.MetaToolCalls: []map[string]any{
			{"id": "call_1", "type": "function", "function": map[string]any{"name": "fs_read", "arguments": "{}"}},
		},
	})
	require.NoError(t, err)
	// Linked tool output survives.
	_, err = s.AddMessage(sess.ID, "tool", `{"ok":true}`, map[string]any{
		domain.MetaToolCallID: "call_1",
		domain.MetaName:       "fs_read",
	})
	require.NoError(t, err)
	// Orphan tool output (no matching assistant tool call) is dropped.
	_, err = s.AddMessage(sess.ID, "tool", `{"ok":true}`, map[string]any{
		domain.MetaToolCallID: "call_ghost",
		domain.MetaName:       "fs_read",
	})
	require.NoError(t, err)

	wire, err := s.MessagesForModel(sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, wire, 3)

	assert.Equal(t, llm.RoleUser, wire[0].Role)
	assert.Equal(t, llm.RoleAssistant, wire[1].Role)
	require.Len(t, wire[1].ToolCalls, 1)
	assert.Equal(t, "call_1", wire[1].ToolCalls[0].ID)
	assert.Equal(t, "fs_read", wire[1].ToolCalls[0].Function.Name)

	assert.Equal(t, llm.RoleTool, wire[2].Role)
	assert.Equal(t, "call_1", wire[2].ToolCallID)
	assert.Equal(t, "fs_read", wire[2].Name)
}

func TestSettingsStore(t *testing.T) {
	db := openTestDB(t)
	s := NewSettingsStore(db, map[string]string{SettingDefaultModel: "openai/gpt-4o-mini"})

	// Fallback before any value is set.
	model, err := s.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", model)

	require.NoError(t, s.Set(SettingDefaultModel, "anthropic/claude-sonnet-4"))
	model, err = s.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4", model)

	// Upsert replaces.
	require.NoError(t, s.Set(SettingDefaultModel, "openai/gpt-4.1"))
	model, err = s.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4.1", model)
}

func TestMemorySessionStoreMatchesSQLiteBehavior(t *testing.T) {
	stores := map[string]SessionStore{
		"sqlite": NewSessionStore(openTestDB(t)),
		"memory": NewMemorySessionStore(),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			sess, err := s.CreateSession("t")
			require.NoError(t, err)

			msg, err := s.AddMessage(sess.ID, "assistant", "a", map[string]any{"x": "1"})
			require.NoError(t, err)

			require.NoError(t, s.UpdateMessage(msg.ID, "b", map[string]any{"y": "2"}))

			msgs, err := s.ListMessages(sess.ID, 0)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, "b", msgs[0].Content)
			assert.Equal(t, "1", msgs[0].Meta["x"])
			assert.Equal(t, "2", msgs[0].Meta["y"])

			require.Error(t, s.UpdateMessage("missing", "c", map[string]any{}))
		})
	}
}
