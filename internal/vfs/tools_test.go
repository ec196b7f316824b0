package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/ochre/internal/agent"
)

func newToolRegistry(t *testing.T) (*agent.ToolRegistry, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	reg := agent.NewToolRegistry()
	RegisterTools(reg, env.router)
	return reg, env
}

func TestToolCatalog(t *testing.T) {
	reg, _ := newToolRegistry(t)
	assert.Equal(t, []string{"fs_list", "fs_read", "fs_write", "fs_move", "fs_tree"}, reg.Names())

	defs := reg.Definitions()
	require.Len(t, defs, 5)
	assert.Equal(t, "function", defs[0].Type)
	assert.Contains(t, defs[0].Function.Description, "List files")
}

func TestToolDispatchRoundTrip(t *testing.T) {
	reg, _ := newToolRegistry(t)
	ctx := context.Background()

	_, err := reg.Dispatch(ctx, "fs_write", `{"path":"/fs/mnt/notes/a.txt","content":"hello"}`)
	require.NoError(t, err)

	res, err := reg.Dispatch(ctx, "fs_read", `{"path":"/fs/mnt/notes/a.txt"}`)
	require.NoError(t, err)
	file, ok := res.(*FileContent)
	require.True(t, ok)
	assert.Equal(t, "hello", file.Content)

	res, err = reg.Dispatch(ctx, "fs_list", `{"path":"/fs/mnt/notes"}`)
	require.NoError(t, err)
	listing, ok := res.(*Listing)
	require.True(t, ok)
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, "a.txt", listing.Entries[0].Name)

	_, err = reg.Dispatch(ctx, "fs_move", `{"fromPath":"/fs/mnt/notes/a.txt","toPath":"/fs/mnt/notes/b.txt"}`)
	require.NoError(t, err)

	res, err = reg.Dispatch(ctx, "fs_tree", `{"path":"/fs/mnt/notes"}`)
	require.NoError(t, err)
	tree, ok := res.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, tree["tree"], "b.txt")
}

func TestToolDispatchValidatesArguments(t *testing.T) {
	reg, _ := newToolRegistry(t)
	ctx := context.Background()

	// Missing required path.
	_, err := reg.Dispatch(ctx, "fs_read", `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")

	// Wrong type.
	_, err = reg.Dispatch(ctx, "fs_read", `{"path": 42}`)
	require.Error(t, err)

	// max_bytes respected.
	_, err = reg.Dispatch(ctx, "fs_write", `{"path":"/fs/mnt/notes/big.txt","content":"0123456789abcdef"}`)
	require.NoError(t, err)
	_, err = reg.Dispatch(ctx, "fs_read", `{"path":"/fs/mnt/notes/big.txt","max_bytes":4}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
