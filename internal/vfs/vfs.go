// Package vfs exposes heterogeneous backends as one virtual filesystem
// rooted at /fs. A router dispatches each path to the first provider that
// claims it; providers back the tree with host directories, todo files,
// kanban boards, or a Gmail mailbox.
package vfs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/soyeahso/ochre/internal/logging"
)

// DefaultMaxReadBytes caps fs_read when the caller does not set a limit.
const DefaultMaxReadBytes = 512_000

// Entry is one directory entry in a listing.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Kind string `json:"kind"` // "file" or "dir"
	Size *int64 `json:"size"`
}

// Listing is the result of listing a directory.
type Listing struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

// FileContent is the result of reading a file.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteResult acknowledges a write.
type WriteResult struct {
	Path      string `json:"path"`
	OK        bool   `json:"ok"`
	TaskCount *int   `json:"task_count,omitempty"`
}

// MoveResult acknowledges a move.
type MoveResult struct {
	FromPath string `json:"fromPath"`
	ToPath   string `json:"toPath"`
	OK       bool   `json:"ok"`
}

// Provider serves a subtree of the virtual filesystem.
type Provider interface {
	CanHandle(path string) bool
	List(ctx context.Context, path string) (*Listing, error)
	Read(ctx context.Context, path string, maxBytes int) (*FileContent, error)
	Write(ctx context.Context, path, content string) (*WriteResult, error)
}

// Mover is implemented by providers that support moves within their subtree.
type Mover interface {
	Move(ctx context.Context, fromPath, toPath string) (*MoveResult, error)
}

// Router dispatches /fs paths to providers in registration order.
type Router struct {
	providers []Provider
	log       *logging.Logger
}

// NewRouter creates a router over the given providers.
func NewRouter(log *logging.Logger, providers ...Provider) *Router {
	return &Router{providers: providers, log: log.Sub("vfs")}
}

// normalizePath ensures a leading slash and strips a trailing one.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func (r *Router) providerFor(path string) (Provider, error) {
	for _, p := range r.providers {
		if p.CanHandle(path) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown /fs path: %s", path)
}

// List lists a virtual directory.
func (r *Router) List(ctx context.Context, path string) (*Listing, error) {
	path = normalizePath(path)
	p, err := r.providerFor(path)
	if err != nil {
		return nil, err
	}
	res, err := p.List(ctx, path)
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("path", path).Int("entries", len(res.Entries)).Msg("fs list")
	return res, nil
}

// Read reads a virtual file. maxBytes <= 0 uses DefaultMaxReadBytes.
func (r *Router) Read(ctx context.Context, path string, maxBytes int) (*FileContent, error) {
	path = normalizePath(path)
	if maxBytes <= 0 {
		maxBytes = DefaultMaxReadBytes
	}
	p, err := r.providerFor(path)
	if err != nil {
		return nil, err
	}
	res, err := p.Read(ctx, path, maxBytes)
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("path", path).Int("contentLen", len(res.Content)).Msg("fs read")
	return res, nil
}

// Write writes a virtual file.
func (r *Router) Write(ctx context.Context, path, content string) (*WriteResult, error) {
	path = normalizePath(path)
	p, err := r.providerFor(path)
	if err != nil {
		return nil, err
	}
	res, err := p.Write(ctx, path, content)
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("path", path).Int("contentLen", len(content)).Msg("fs write")
	return res, nil
}

// Move moves a path. Both endpoints must resolve to the same provider, and
// that provider must support moves.
func (r *Router) Move(ctx context.Context, fromPath, toPath string) (*MoveResult, error) {
	fromPath = normalizePath(fromPath)
	toPath = normalizePath(toPath)
	src, err := r.providerFor(fromPath)
	if err != nil {
		return nil, err
	}
	dst, err := r.providerFor(toPath)
	if err != nil {
		return nil, err
	}
	if src != dst {
		return nil, fmt.Errorf("cannot move between different filesystem providers")
	}
	mover, ok := src.(Mover)
	if !ok {
		return nil, fmt.Errorf("move not supported for this path")
	}
	res, err := mover.Move(ctx, fromPath, toPath)
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("fromPath", fromPath).Str("toPath", toPath).Msg("fs move")
	return res, nil
}

// Tree renders a directory subtree as an ASCII tree. Unlistable branches
// are skipped silently.
func (r *Router) Tree(ctx context.Context, path string) (string, error) {
	path = normalizePath(path)
	if _, err := r.providerFor(path); err != nil {
		return "", err
	}

	rootName := path
	if idx := strings.LastIndex(strings.TrimRight(path, "/"), "/"); idx >= 0 {
		if name := strings.TrimRight(path, "/")[idx+1:]; name != "" {
			rootName = name
		}
	}
	lines := []string{rootName}
	r.walkTree(ctx, path, "", &lines)
	return strings.Join(lines, "\n"), nil
}

func (r *Router) walkTree(ctx context.Context, path, prefix string, lines *[]string) {
	listing, err := r.List(ctx, path)
	if err != nil {
		return
	}
	entries := append([]Entry(nil), listing.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	for i, e := range entries {
		last := i == len(entries)-1
		marker := "├── "
		if last {
			marker = "└── "
		}
		*lines = append(*lines, prefix+marker+e.Name)
		if e.Kind == "dir" {
			ext := "│   "
			if last {
				ext = "    "
			}
			r.walkTree(ctx, e.Path, prefix+ext, lines)
		}
	}
}
