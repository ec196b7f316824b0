// Package kanban stores boards and cards in SQLite. Boards have a fixed
// set of status columns; cards move between them. The vfs package exposes
// the same data as a virtual filesystem under /fs/kanban.
package kanban

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/soyeahso/ochre/internal/store"
)

// DefaultStatuses are the columns a new board starts with.
var DefaultStatuses = []string{"Backlog", "In Progress", "Done"}

// Board is a kanban board with ordered status columns.
type Board struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Statuses []string `json:"statuses"`
}

// Card is a single kanban card.
type Card struct {
	ID      string `json:"id"`
	BoardID string `json:"boardId"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	BodyMD  string `json:"bodyMd"`
}

// Errors returned by the store.
var (
	ErrBoardNotFound = fmt.Errorf("board not found")
	ErrCardNotFound  = fmt.Errorf("card not found")
)

// Store manages kanban data over the shared database.
type Store struct {
	db *store.DB
}

// NewStore creates a kanban store.
func NewStore(db *store.DB) *Store {
	return &Store{db: db}
}

// CreateBoard creates a board. Empty statuses get the defaults.
func (s *Store) CreateBoard(name string, statuses []string) (*Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("board name is empty")
	}
	if len(statuses) == 0 {
		statuses = DefaultStatuses
	}
	statusesJSON, err := json.Marshal(statuses)
	if err != nil {
		return nil, err
	}

	b := &Board{ID: uuid.NewString(), Name: name, Statuses: statuses}
	_, err = s.db.SQL().Exec(
		"INSERT INTO kanban_boards (id, name, statuses) VALUES (?, ?, ?)",
		b.ID, b.Name, string(statusesJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("creating board: %w", err)
	}
	return b, nil
}

// GetBoard returns a board by id.
func (s *Store) GetBoard(id string) (*Board, error) {
	var b Board
	var statusesJSON string
	err := s.db.SQL().QueryRow(
		"SELECT id, name, statuses FROM kanban_boards WHERE id = ?", id,
	).Scan(&b.ID, &b.Name, &statusesJSON)
	if err == sql.ErrNoRows {
		return nil, ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting board: %w", err)
	}
	if err := json.Unmarshal([]byte(statusesJSON), &b.Statuses); err != nil {
		return nil, fmt.Errorf("parsing board statuses: %w", err)
	}
	return &b, nil
}

// ListBoards returns all boards ordered by name.
func (s *Store) ListBoards() ([]Board, error) {
	rows, err := s.db.SQL().Query("SELECT id, name, statuses FROM kanban_boards ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing boards: %w", err)
	}
	defer rows.Close()

	var out []Board
	for rows.Next() {
		var b Board
		var statusesJSON string
		if err := rows.Scan(&b.ID, &b.Name, &statusesJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(statusesJSON), &b.Statuses); err != nil {
			return nil, fmt.Errorf("parsing board statuses: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// hasStatus reports whether the board defines the given column.
func (b *Board) hasStatus(status string) bool {
	for _, s := range b.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// CreateCard adds a card to a board column.
func (s *Store) CreateCard(boardID, title, status, bodyMD string) (*Card, error) {
	board, err := s.GetBoard(boardID)
	if err != nil {
		return nil, err
	}
	if status == "" && len(board.Statuses) > 0 {
		status = board.Statuses[0]
	}
	if !board.hasStatus(status) {
		return nil, fmt.Errorf("unknown status %q for board %s", status, boardID)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("card title is empty")
	}

	c := &Card{ID: uuid.NewString(), BoardID: boardID, Title: title, Status: status, BodyMD: bodyMD}
	_, err = s.db.SQL().Exec(
		"INSERT INTO kanban_cards (id, board_id, title, status, body_md) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.BoardID, c.Title, c.Status, c.BodyMD,
	)
	if err != nil {
		return nil, fmt.Errorf("creating card: %w", err)
	}
	return c, nil
}

// GetCard returns a card by id within a board.
func (s *Store) GetCard(boardID, cardID string) (*Card, error) {
	var c Card
	err := s.db.SQL().QueryRow(
		"SELECT id, board_id, title, status, body_md FROM kanban_cards WHERE id = ? AND board_id = ?",
		cardID, boardID,
	).Scan(&c.ID, &c.BoardID, &c.Title, &c.Status, &c.BodyMD)
	if err == sql.ErrNoRows {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting card: %w", err)
	}
	return &c, nil
}

// ListCards returns a board's cards, optionally filtered by status.
func (s *Store) ListCards(boardID, status string) ([]Card, error) {
	query := "SELECT id, board_id, title, status, body_md FROM kanban_cards WHERE board_id = ? ORDER BY created_at ASC, id ASC"
	args := []any{boardID}
	if status != "" {
		query = "SELECT id, board_id, title, status, body_md FROM kanban_cards WHERE board_id = ? AND status = ? ORDER BY created_at ASC, id ASC"
		args = append(args, status)
	}

	rows, err := s.db.SQL().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	defer rows.Close()

	var out []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Title, &c.Status, &c.BodyMD); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCard replaces a card's title and body.
func (s *Store) UpdateCard(boardID, cardID, title, bodyMD string) (*Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("card title is empty")
	}
	res, err := s.db.SQL().Exec(
		"UPDATE kanban_cards SET title = ?, body_md = ?, updated_at = datetime('now') WHERE id = ? AND board_id = ?",
		title, bodyMD, cardID, boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrCardNotFound
	}
	return s.GetCard(boardID, cardID)
}

// MoveCard changes a card's status column.
func (s *Store) MoveCard(boardID, cardID, newStatus string) (*Card, error) {
	board, err := s.GetBoard(boardID)
	if err != nil {
		return nil, err
	}
	if !board.hasStatus(newStatus) {
		return nil, fmt.Errorf("unknown status %q for board %s", newStatus, boardID)
	}

	res, err := s.db.SQL().Exec(
		"UPDATE kanban_cards SET status = ?, updated_at = datetime('now') WHERE id = ? AND board_id = ?",
		newStatus, cardID, boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("moving card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrCardNotFound
	}
	return s.GetCard(boardID, cardID)
}

// DeleteCard removes a card.
func (s *Store) DeleteCard(boardID, cardID string) error {
	res, err := s.db.SQL().Exec(
		"DELETE FROM kanban_cards WHERE id = ? AND board_id = ?", cardID, boardID,
	)
	if err != nil {
		return fmt.Errorf("deleting card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCardNotFound
	}
	return nil
}

// RenderCardMarkdown produces the markdown document for a card.
func RenderCardMarkdown(c *Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", c.Title)
	if c.BodyMD != "" {
		b.WriteString("\n")
		b.WriteString(c.BodyMD)
		if !strings.HasSuffix(c.BodyMD, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ParseCardMarkdown splits a card document into title and body. The first
// level-1 heading is the title; everything after it is the body.
func ParseCardMarkdown(md string) (title, body string) {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			body = strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
			return title, strings.TrimRight(body, "\n")
		}
	}
	return "", strings.TrimRight(md, "\n")
}
