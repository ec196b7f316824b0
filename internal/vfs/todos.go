package vfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/ochre/internal/todos"
)

// TodosProvider exposes daily todo lists as markdown files under /fs/todos.
// The listing shows template.md, today.md, and one <day>.md per stored day;
// reads render the canonical JSON as markdown and writes reconcile edited
// markdown back into it.
type TodosProvider struct {
	store *todos.Store
}

// NewTodosProvider creates the /fs/todos provider.
func NewTodosProvider(store *todos.Store) *TodosProvider {
	return &TodosProvider{store: store}
}

// CanHandle claims /fs/todos and everything under it.
func (p *TodosProvider) CanHandle(path string) bool {
	return path == "/fs/todos" || strings.HasPrefix(path, "/fs/todos/")
}

// List shows the virtual markdown files for all known days.
func (p *TodosProvider) List(_ context.Context, path string) (*Listing, error) {
	if path != "/fs/todos" {
		return nil, fmt.Errorf("unknown virtual directory: %s", path)
	}
	days, err := p.store.ListDays()
	if err != nil {
		return nil, err
	}
	entries := []Entry{
		{Name: "template.md", Path: "/fs/todos/template.md", Kind: "file"},
		{Name: "today.md", Path: "/fs/todos/today.md", Kind: "file"},
	}
	for _, day := range days {
		entries = append(entries, Entry{Name: day + ".md", Path: "/fs/todos/" + day + ".md", Kind: "file"})
	}
	return &Listing{Path: path, Entries: entries}, nil
}

// dayFromPath maps a virtual file path to its day key. today.md resolves to
// the current day.
func dayFromPath(path string) (string, error) {
	if path == "/fs/todos/today.md" {
		return todos.Today(), nil
	}
	name := strings.TrimPrefix(path, "/fs/todos/")
	if strings.Contains(name, "/") || !strings.HasSuffix(name, ".md") {
		return "", fmt.Errorf("unsupported todo file path: %s", path)
	}
	day := strings.TrimSuffix(name, ".md")
	if len(day) != 10 || day[4] != '-' || day[7] != '-' {
		return "", fmt.Errorf("unsupported todo file path: %s", path)
	}
	return day, nil
}

// Read renders a day's tasks (or the template) as markdown.
func (p *TodosProvider) Read(_ context.Context, path string, _ int) (*FileContent, error) {
	if path == "/fs/todos/template.md" {
		content, err := p.store.ReadTemplate()
		if err != nil {
			return nil, err
		}
		return &FileContent{Path: path, Content: content}, nil
	}

	day, err := dayFromPath(path)
	if err != nil {
		return nil, err
	}
	tasks, err := p.store.EnsureDay(day)
	if err != nil {
		return nil, err
	}
	return &FileContent{Path: path, Content: todos.RenderMarkdown(day, tasks)}, nil
}

// Write applies an edited markdown view back to the day's canonical store.
func (p *TodosProvider) Write(_ context.Context, path, content string) (*WriteResult, error) {
	if path == "/fs/todos/template.md" {
		if err := p.store.WriteTemplate(content); err != nil {
			return nil, err
		}
		return &WriteResult{Path: path, OK: true}, nil
	}

	day, err := dayFromPath(path)
	if err != nil {
		return nil, err
	}
	tasks, err := p.store.ApplyMarkdownEdit(day, content)
	if err != nil {
		return nil, err
	}
	n := len(tasks)
	return &WriteResult{Path: path, OK: true, TaskCount: &n}, nil
}
