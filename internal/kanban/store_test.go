package kanban

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/ochre/internal/logging"
	"github.com/soyeahso/ochre/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(":memory:", logging.New(nil, "silent", "json"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestCreateBoardDefaults(t *testing.T) {
	s := newTestStore(t)

	b, err := s.CreateBoard("Work", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "Work", b.Name)
	assert.Equal(t, DefaultStatuses, b.Statuses)

	got, err := s.GetBoard(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Statuses, got.Statuses)

	_, err = s.CreateBoard("   ", nil)
	assert.Error(t, err)

	_, err = s.GetBoard("missing")
	assert.ErrorIs(t, err, ErrBoardNotFound)
}

func TestCreateBoardCustomStatuses(t *testing.T) {
	s := newTestStore(t)

	b, err := s.CreateBoard("Custom", []string{"Todo", "Doing", "Review", "Done"})
	require.NoError(t, err)

	got, err := s.GetBoard(b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Todo", "Doing", "Review", "Done"}, got.Statuses)
}

func TestListBoardsOrderedByName(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateBoard("zeta", nil)
	require.NoError(t, err)
	_, err = s.CreateBoard("alpha", nil)
	require.NoError(t, err)

	boards, err := s.ListBoards()
	require.NoError(t, err)
	require.Len(t, boards, 2)
	assert.Equal(t, "alpha", boards[0].Name)
	assert.Equal(t, "zeta", boards[1].Name)
}

func TestCardLifecycle(t *testing.T) {
	s := newTestStore(t)
	b, err := s.CreateBoard("Work", nil)
	require.NoError(t, err)

	// Empty status lands in the first column.
	c, err := s.CreateCard(b.ID, "write tests", "", "some body")
	require.NoError(t, err)
	assert.Equal(t, "Backlog", c.Status)
	assert.Equal(t, "some body", c.BodyMD)

	got, err := s.GetCard(b.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "write tests", got.Title)

	updated, err := s.UpdateCard(b.ID, c.ID, "write more tests", "longer body")
	require.NoError(t, err)
	assert.Equal(t, "write more tests", updated.Title)
	assert.Equal(t, "longer body", updated.BodyMD)

	moved, err := s.MoveCard(b.ID, c.ID, "In Progress")
	require.NoError(t, err)
	assert.Equal(t, "In Progress", moved.Status)

	require.NoError(t, s.DeleteCard(b.ID, c.ID))
	_, err = s.GetCard(b.ID, c.ID)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestCardStatusValidation(t *testing.T) {
	s := newTestStore(t)
	b, err := s.CreateBoard("Work", nil)
	require.NoError(t, err)

	_, err = s.CreateCard(b.ID, "bad column", "Nonexistent", "")
	assert.Error(t, err)

	c, err := s.CreateCard(b.ID, "ok", "Backlog", "")
	require.NoError(t, err)

	_, err = s.MoveCard(b.ID, c.ID, "Nonexistent")
	assert.Error(t, err)

	// Status unchanged after the failed move.
	got, err := s.GetCard(b.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backlog", got.Status)
}

func TestCardScopedToBoard(t *testing.T) {
	s := newTestStore(t)
	b1, err := s.CreateBoard("One", nil)
	require.NoError(t, err)
	b2, err := s.CreateBoard("Two", nil)
	require.NoError(t, err)

	c, err := s.CreateCard(b1.ID, "card", "Backlog", "")
	require.NoError(t, err)

	_, err = s.GetCard(b2.ID, c.ID)
	assert.ErrorIs(t, err, ErrCardNotFound)
	_, err = s.MoveCard(b2.ID, c.ID, "Done")
	assert.ErrorIs(t, err, ErrCardNotFound)
	err = s.DeleteCard(b2.ID, c.ID)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestListCardsFilterByStatus(t *testing.T) {
	s := newTestStore(t)
	b, err := s.CreateBoard("Work", nil)
	require.NoError(t, err)

	first, err := s.CreateCard(b.ID, "first", "Backlog", "")
	require.NoError(t, err)
	_, err = s.CreateCard(b.ID, "second", "Done", "")
	require.NoError(t, err)

	all, err := s.ListCards(b.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	backlog, err := s.ListCards(b.ID, "Backlog")
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, first.ID, backlog[0].ID)
}

func TestCardMarkdownRoundTrip(t *testing.T) {
	c := &Card{Title: "Ship it", BodyMD: "Steps:\n- build\n- release"}
	md := RenderCardMarkdown(c)
	assert.Equal(t, "# Ship it\n\nSteps:\n- build\n- release\n", md)

	title, body := ParseCardMarkdown(md)
	assert.Equal(t, "Ship it", title)
	assert.Equal(t, "Steps:\n- build\n- release", body)
}

func TestParseCardMarkdownWithoutHeading(t *testing.T) {
	title, body := ParseCardMarkdown("just some text\n")
	assert.Empty(t, title)
	assert.Equal(t, "just some text", body)
}
