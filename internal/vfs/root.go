package vfs

import (
	"context"
	"fmt"
)

// RootProvider lists the top-level namespaces under /fs.
type RootProvider struct {
	names []string
}

// NewRootProvider creates the /fs root listing the given namespaces.
func NewRootProvider(names ...string) *RootProvider {
	return &RootProvider{names: names}
}

// CanHandle claims only the /fs root itself.
func (p *RootProvider) CanHandle(path string) bool {
	return path == "/fs"
}

// List returns the namespace directories.
func (p *RootProvider) List(_ context.Context, _ string) (*Listing, error) {
	entries := make([]Entry, 0, len(p.names))
	for _, name := range p.names {
		entries = append(entries, Entry{Name: name, Path: "/fs/" + name, Kind: "dir"})
	}
	return &Listing{Path: "/fs", Entries: entries}, nil
}

// Read always fails: the root is a directory.
func (p *RootProvider) Read(_ context.Context, _ string, _ int) (*FileContent, error) {
	return nil, fmt.Errorf("cannot read a directory")
}

// Write always fails: the root is a directory.
func (p *RootProvider) Write(_ context.Context, _, _ string) (*WriteResult, error) {
	return nil, fmt.Errorf("cannot write a directory")
}
