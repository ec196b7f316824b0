// Package todos stores daily task lists as canonical JSON files with a
// markdown checkbox view. Each day has a <day>.json file; the markdown
// rendering embeds stable task ids in HTML comments so round-trip edits
// keep identities.
package todos

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// taskLineRe matches markdown checkbox lines with an optional id comment.
var taskLineRe = regexp.MustCompile(`^\s*-\s*\[([ xX])\]\s*(.*?)\s*(?:<!--\s*id:([A-Za-z0-9_-]+)\s*-->)?\s*$`)

const defaultTemplate = "# Template\n\n- [ ] Review today's priorities\n- [ ] Triage inbox\n- [ ] One meaningful task\n"

// Task is a single todo item.
type Task struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Done      bool   `json:"done"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ErrTaskNotFound is returned when a task id does not exist for the day.
var ErrTaskNotFound = fmt.Errorf("task not found")

// Store manages day files under a base directory.
type Store struct {
	dir string
}

// NewStore creates a todo store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Today returns the current day key (YYYY-MM-DD).
func Today() string {
	return time.Now().Format("2006-01-02")
}

func nowISO() string {
	return time.Now().Format("2006-01-02T15:04:05")
}

func (s *Store) dayJSONPath(day string) string {
	return filepath.Join(s.dir, day+".json")
}

func (s *Store) templatePath() string {
	return filepath.Join(s.dir, "template.md")
}

func (s *Store) ensureDirs() error {
	return os.MkdirAll(s.dir, 0o700)
}

// ListDays returns the day keys that have a stored file, newest first.
func (s *Store) ListDays() ([]string, error) {
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	names, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	var days []string
	for _, n := range names {
		day := strings.TrimSuffix(filepath.Base(n), ".json")
		if isDayKey(day) {
			days = append(days, day)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// isDayKey reports whether s looks like YYYY-MM-DD.
func isDayKey(s string) bool {
	return len(s) == 10 && s[4] == '-' && s[7] == '-'
}

// ReadTemplate returns the template markdown, seeding the default first.
func (s *Store) ReadTemplate() (string, error) {
	if err := s.EnsureTemplate(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.templatePath())
	if err != nil {
		return "", fmt.Errorf("reading template: %w", err)
	}
	return string(data), nil
}

// WriteTemplate replaces the template markdown.
func (s *Store) WriteTemplate(content string) error {
	if err := s.ensureDirs(); err != nil {
		return err
	}
	return os.WriteFile(s.templatePath(), []byte(content), 0o600)
}

// EnsureTemplate writes the default template if none exists.
func (s *Store) EnsureTemplate() error {
	if err := s.ensureDirs(); err != nil {
		return err
	}
	p := s.templatePath()
	if _, err := os.Stat(p); err == nil {
		return nil
	}
	return os.WriteFile(p, []byte(defaultTemplate), 0o600)
}

// parsedTask is a task line lifted from markdown.
type parsedTask struct {
	id   string // empty when the line has no id comment
	text string
	done bool
}

// ParseMarkdownTasks extracts checkbox lines from markdown. Lines that are
// not task checkboxes are ignored.
func ParseMarkdownTasks(md string) []parsedTask {
	var out []parsedTask
	for _, line := range strings.Split(md, "\n") {
		m := taskLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[2])
		if text == "" {
			continue
		}
		out = append(out, parsedTask{
			id:   m[3],
			text: text,
			done: strings.EqualFold(m[1], "x"),
		})
	}
	return out
}

// RenderMarkdown produces the markdown view of a day, embedding stable ids.
func RenderMarkdown(day string, tasks []Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Todos: %s\n\n", day)
	for _, t := range tasks {
		box := " "
		if t.Done {
			box = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s <!-- id:%s -->\n", box, t.Text, t.ID)
	}
	return b.String()
}

type dayFile struct {
	Day   string `json:"day"`
	Tasks []Task `json:"tasks"`
}

// LoadDay returns the day's tasks, seeding the day from the template when
// it does not exist yet.
func (s *Store) LoadDay(day string) ([]Task, error) {
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	p := s.dayJSONPath(day)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return s.EnsureDay(day)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading day file: %w", err)
	}
	var df dayFile
	if err := json.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parsing day file: %w", err)
	}
	return df.Tasks, nil
}

// SaveDay writes the day's tasks to canonical JSON.
func (s *Store) SaveDay(day string, tasks []Task) error {
	if err := s.ensureDirs(); err != nil {
		return err
	}
	if tasks == nil {
		tasks = []Task{}
	}
	data, err := json.MarshalIndent(dayFile{Day: day, Tasks: tasks}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.dayJSONPath(day), data, 0o600)
}

// EnsureDay seeds the day from the template when it does not exist.
func (s *Store) EnsureDay(day string) ([]Task, error) {
	if err := s.EnsureTemplate(); err != nil {
		return nil, err
	}
	p := s.dayJSONPath(day)
	if _, err := os.Stat(p); err == nil {
		return s.LoadDay(day)
	}

	tpl, err := os.ReadFile(s.templatePath())
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}

	now := nowISO()
	var tasks []Task
	for _, pt := range ParseMarkdownTasks(string(tpl)) {
		tasks = append(tasks, Task{
			ID:        uuid.NewString(),
			Text:      pt.text,
			Done:      false,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err := s.SaveDay(day, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ApplyMarkdownEdit reconciles an edited markdown view into the day's
// canonical JSON.
//
// Identity resolution: a task keeps its id when the edited line carries a
// matching id comment; otherwise the first unused existing task with the
// same text is reused; otherwise a new task is created. Tasks absent from
// the edited markdown are deleted.
func (s *Store) ApplyMarkdownEdit(day, newMD string) ([]Task, error) {
	existing, err := s.LoadDay(day)
	if err != nil {
		return nil, err
	}

	byID := map[string]Task{}
	byText := map[string][]Task{}
	for _, t := range existing {
		byID[t.ID] = t
		key := strings.TrimSpace(t.Text)
		byText[key] = append(byText[key], t)
	}

	usedIDs := map[string]bool{}
	now := nowISO()
	var out []Task

	for _, pt := range ParseMarkdownTasks(newMD) {
		var match *Task
		if pt.id != "" {
			if t, ok := byID[pt.id]; ok {
				match = &t
			}
		}
		if match == nil {
			for _, cand := range byText[pt.text] {
				if !usedIDs[cand.ID] {
					c := cand
					match = &c
					break
				}
			}
		}

		if match == nil {
			out = append(out, Task{
				ID:        uuid.NewString(),
				Text:      pt.text,
				Done:      pt.done,
				CreatedAt: now,
				UpdatedAt: now,
			})
			continue
		}

		usedIDs[match.ID] = true
		out = append(out, Task{
			ID:        match.ID,
			Text:      pt.text,
			Done:      pt.done,
			CreatedAt: match.CreatedAt,
			UpdatedAt: now,
		})
	}

	if err := s.SaveDay(day, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetDone toggles a task's done state.
func (s *Store) SetDone(day, taskID string, done bool) ([]Task, error) {
	tasks, err := s.LoadDay(day)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range tasks {
		if tasks[i].ID == taskID {
			tasks[i].Done = done
			tasks[i].UpdatedAt = nowISO()
			found = true
		}
	}
	if !found {
		return nil, ErrTaskNotFound
	}
	if err := s.SaveDay(day, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// AddTask appends a new task to the day.
func (s *Store) AddTask(day, text string) ([]Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("task text is empty")
	}
	tasks, err := s.LoadDay(day)
	if err != nil {
		return nil, err
	}
	now := nowISO()
	tasks = append(tasks, Task{
		ID:        uuid.NewString(),
		Text:      text,
		Done:      false,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err := s.SaveDay(day, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// DeleteTask removes a task from the day.
func (s *Store) DeleteTask(day, taskID string) ([]Task, error) {
	tasks, err := s.LoadDay(day)
	if err != nil {
		return nil, err
	}
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.ID != taskID {
			out = append(out, t)
		}
	}
	if len(out) == len(tasks) {
		return nil, ErrTaskNotFound
	}
	if err := s.SaveDay(day, out); err != nil {
		return nil, err
	}
	return out, nil
}
