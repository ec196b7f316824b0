package vfs

import (
	"context"
	"fmt"

	"github.com/soyeahso/ochre/internal/agent"
)

// RegisterTools wires the filesystem tools onto a registry.
func RegisterTools(reg *agent.ToolRegistry, router *Router) {
	reg.MustRegister(&listTool{router})
	reg.MustRegister(&readTool{router})
	reg.MustRegister(&writeTool{router})
	reg.MustRegister(&moveTool{router})
	reg.MustRegister(&treeTool{router})
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	return v, nil
}

type listTool struct{ router *Router }

func (t *listTool) Name() string { return "fs_list" }

func (t *listTool) Description() string {
	return "List files/directories under unified filesystem paths like /fs/mnt/<mountName>/... or /fs/todos/..."
}

func (t *listTool) InputSchema() string {
	return `{
		"type": "object",
		"properties": {"path": {"type": "string"}},
		"required": ["path"]
	}`
}

func (t *listTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	return t.router.List(ctx, path)
}

type readTool struct{ router *Router }

func (t *readTool) Name() string { return "fs_read" }

func (t *readTool) Description() string {
	return "Read a UTF-8 text file from a unified filesystem path."
}

func (t *readTool) InputSchema() string {
	return `{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"max_bytes": {"type": "integer"}
		},
		"required": ["path"]
	}`
}

func (t *readTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	maxBytes := 0
	if v, ok := args["max_bytes"].(float64); ok {
		maxBytes = int(v)
	}
	return t.router.Read(ctx, path, maxBytes)
}

type writeTool struct{ router *Router }

func (t *writeTool) Name() string { return "fs_write" }

func (t *writeTool) Description() string {
	return "Write a UTF-8 text file to a unified filesystem path."
}

func (t *writeTool) InputSchema() string {
	return `{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"content": {"type": "string"}
		},
		"required": ["path", "content"]
	}`
}

func (t *writeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, fmt.Errorf("missing required argument: content")
	}
	return t.router.Write(ctx, path, content)
}

type moveTool struct{ router *Router }

func (t *moveTool) Name() string { return "fs_move" }

func (t *moveTool) Description() string {
	return "Move/rename a path in the unified filesystem (e.g. moving kanban cards between status folders)."
}

func (t *moveTool) InputSchema() string {
	return `{
		"type": "object",
		"properties": {
			"fromPath": {"type": "string"},
			"toPath": {"type": "string"}
		},
		"required": ["fromPath", "toPath"]
	}`
}

func (t *moveTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	fromPath, err := stringArg(args, "fromPath")
	if err != nil {
		return nil, err
	}
	toPath, err := stringArg(args, "toPath")
	if err != nil {
		return nil, err
	}
	return t.router.Move(ctx, fromPath, toPath)
}

type treeTool struct{ router *Router }

func (t *treeTool) Name() string { return "fs_tree" }

func (t *treeTool) Description() string {
	return "Render a directory subtree of the unified filesystem as an ASCII tree."
}

func (t *treeTool) InputSchema() string {
	return `{
		"type": "object",
		"properties": {"path": {"type": "string"}},
		"required": ["path"]
	}`
}

func (t *treeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	tree, err := t.router.Tree(ctx, path)
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": path, "tree": tree}, nil
}
