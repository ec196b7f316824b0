package todos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestParseMarkdownTasks(t *testing.T) {
	md := `# Todos: 2026-08-23

- [ ] buy milk <!-- id:abc-123 -->
- [x] ship release
- [X] uppercase done
not a task line
- [ ]
- [ ]    spaced out   `

	tasks := ParseMarkdownTasks(md)
	require.Len(t, tasks, 4)

	assert.Equal(t, "abc-123", tasks[0].id)
	assert.Equal(t, "buy milk", tasks[0].text)
	assert.False(t, tasks[0].done)

	assert.Empty(t, tasks[1].id)
	assert.True(t, tasks[1].done)
	assert.True(t, tasks[2].done)
	assert.Equal(t, "spaced out", tasks[3].text)
}

func TestEnsureDaySeedsFromTemplate(t *testing.T) {
	s := newTestStore(t)

	tasks, err := s.EnsureDay("2026-08-23")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.NotEmpty(t, task.ID)
		assert.False(t, task.Done)
	}

	// Idempotent: re-ensuring keeps the same ids.
	again, err := s.EnsureDay("2026-08-23")
	require.NoError(t, err)
	require.Len(t, again, 3)
	assert.Equal(t, tasks[0].ID, again[0].ID)
}

func TestRenderMarkdownRoundTrip(t *testing.T) {
	s := newTestStore(t)
	day := "2026-08-23"

	tasks, err := s.EnsureDay(day)
	require.NoError(t, err)

	md := RenderMarkdown(day, tasks)
	assert.True(t, strings.HasPrefix(md, "# Todos: "+day))
	for _, task := range tasks {
		assert.Contains(t, md, "<!-- id:"+task.ID+" -->")
	}

	// Unedited round trip preserves everything.
	after, err := s.ApplyMarkdownEdit(day, md)
	require.NoError(t, err)
	require.Len(t, after, len(tasks))
	for i := range tasks {
		assert.Equal(t, tasks[i].ID, after[i].ID)
		assert.Equal(t, tasks[i].Text, after[i].Text)
		assert.Equal(t, tasks[i].CreatedAt, after[i].CreatedAt)
	}
}

func TestApplyMarkdownEditKeepsIdentityById(t *testing.T) {
	s := newTestStore(t)
	day := "2026-08-23"

	tasks, err := s.EnsureDay(day)
	require.NoError(t, err)
	first := tasks[0]

	// Rename the first task but keep its id comment, check it off, drop
	// the rest, and add a new one.
	md := "- [x] renamed task <!-- id:" + first.ID + " -->\n- [ ] brand new\n"
	after, err := s.ApplyMarkdownEdit(day, md)
	require.NoError(t, err)
	require.Len(t, after, 2)

	assert.Equal(t, first.ID, after[0].ID)
	assert.Equal(t, "renamed task", after[0].Text)
	assert.True(t, after[0].Done)
	assert.Equal(t, first.CreatedAt, after[0].CreatedAt)

	assert.NotEmpty(t, after[1].ID)
	assert.Equal(t, "brand new", after[1].Text)
}

func TestApplyMarkdownEditMatchesByTextWhenIdMissing(t *testing.T) {
	s := newTestStore(t)
	day := "2026-08-23"

	_, err := s.AddTask(day, "unique task")
	require.NoError(t, err)
	before, err := s.LoadDay(day)
	require.NoError(t, err)

	var target Task
	for _, task := range before {
		if task.Text == "unique task" {
			target = task
		}
	}
	require.NotEmpty(t, target.ID)

	// The edit keeps the text but drops the id comment; identity must be
	// recovered by text match.
	after, err := s.ApplyMarkdownEdit(day, "- [x] unique task\n")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, target.ID, after[0].ID)
	assert.True(t, after[0].Done)
}

func TestApplyMarkdownEditDuplicateTextsConsumeDistinctTasks(t *testing.T) {
	s := newTestStore(t)
	day := "2026-08-23"

	require.NoError(t, s.SaveDay(day, nil))
	_, err := s.AddTask(day, "same")
	require.NoError(t, err)
	tasks, err := s.AddTask(day, "same")
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	after, err := s.ApplyMarkdownEdit(day, "- [ ] same\n- [x] same\n")
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.NotEqual(t, after[0].ID, after[1].ID)
	assert.Equal(t, tasks[0].ID, after[0].ID)
	assert.Equal(t, tasks[1].ID, after[1].ID)
}

func TestListDaysAndTemplate(t *testing.T) {
	s := newTestStore(t)

	days, err := s.ListDays()
	require.NoError(t, err)
	assert.Empty(t, days)

	_, err = s.EnsureDay("2026-08-22")
	require.NoError(t, err)
	_, err = s.EnsureDay("2026-08-23")
	require.NoError(t, err)

	days, err = s.ListDays()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-23", "2026-08-22"}, days)

	tpl, err := s.ReadTemplate()
	require.NoError(t, err)
	assert.Contains(t, tpl, "- [ ]")

	require.NoError(t, s.WriteTemplate("# Template\n\n- [ ] only one\n"))
	tasks, err := s.EnsureDay("2026-08-24")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "only one", tasks[0].Text)
}

func TestSetDoneAddDelete(t *testing.T) {
	s := newTestStore(t)
	day := "2026-08-23"

	require.NoError(t, s.SaveDay(day, nil))
	tasks, err := s.AddTask(day, "todo one")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	tasks, err = s.SetDone(day, tasks[0].ID, true)
	require.NoError(t, err)
	assert.True(t, tasks[0].Done)

	_, err = s.SetDone(day, "missing", true)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	tasks, err = s.DeleteTask(day, tasks[0].ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = s.DeleteTask(day, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = s.AddTask(day, "   ")
	assert.Error(t, err)
}
