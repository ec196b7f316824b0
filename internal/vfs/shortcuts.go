package vfs

import (
	"context"
	"fmt"
	"strings"
)

// ShortcutsProvider exposes /fs/shortcuts, a read-only directory of links
// to frequently used paths elsewhere in the tree. The entries point at
// their targets; reads and writes go through the target path.
type ShortcutsProvider struct {
	entries []Entry
}

// NewShortcutsProvider creates the /fs/shortcuts provider with the default
// link set.
func NewShortcutsProvider() *ShortcutsProvider {
	return &ShortcutsProvider{entries: []Entry{
		{Name: "today.md", Path: "/fs/todos/today.md", Kind: "file"},
	}}
}

// CanHandle claims /fs/shortcuts and everything under it.
func (p *ShortcutsProvider) CanHandle(path string) bool {
	return path == "/fs/shortcuts" || strings.HasPrefix(path, "/fs/shortcuts/")
}

// List shows the shortcut entries, each pointing at its target path.
func (p *ShortcutsProvider) List(_ context.Context, path string) (*Listing, error) {
	if path != "/fs/shortcuts" {
		return nil, fmt.Errorf("unknown virtual directory: %s", path)
	}
	entries := make([]Entry, len(p.entries))
	copy(entries, p.entries)
	return &Listing{Path: path, Entries: entries}, nil
}

// Read always fails: shortcuts are links, the target path must be read.
func (p *ShortcutsProvider) Read(_ context.Context, path string, _ int) (*FileContent, error) {
	return nil, fmt.Errorf("shortcuts is a directory-only provider, read the target path instead: %s", path)
}

// Write always fails: the shortcuts directory is read-only.
func (p *ShortcutsProvider) Write(_ context.Context, path, _ string) (*WriteResult, error) {
	return nil, fmt.Errorf("shortcuts is read-only: %s", path)
}
