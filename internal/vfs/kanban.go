package vfs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/ochre/internal/kanban"
)

// KanbanProvider exposes boards under /fs/kanban:
//
//	/fs/kanban/boards/<boardId>/board.json
//	/fs/kanban/boards/<boardId>/status/<statusName>/<cardId>.md
//
// Moving a card file between status folders changes its status. Writing to
// a path whose file name is not an existing card id creates a new card in
// that column.
type KanbanProvider struct {
	store *kanban.Store
}

// NewKanbanProvider creates the /fs/kanban provider.
func NewKanbanProvider(store *kanban.Store) *KanbanProvider {
	return &KanbanProvider{store: store}
}

// CanHandle claims /fs/kanban and everything under it.
func (p *KanbanProvider) CanHandle(path string) bool {
	return path == "/fs/kanban" || strings.HasPrefix(path, "/fs/kanban/")
}

// relParts returns path segments below /fs/kanban.
func kanbanRelParts(path string) []string {
	rest := strings.TrimPrefix(path, "/fs/kanban")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// List serves the namespace, board, and status directory levels.
func (p *KanbanProvider) List(_ context.Context, path string) (*Listing, error) {
	rel := kanbanRelParts(path)

	switch {
	case len(rel) == 0:
		return &Listing{Path: path, Entries: []Entry{
			{Name: "boards", Path: "/fs/kanban/boards", Kind: "dir"},
		}}, nil

	case len(rel) == 1 && rel[0] == "boards":
		boards, err := p.store.ListBoards()
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(boards))
		for _, b := range boards {
			entries = append(entries, Entry{Name: b.ID, Path: "/fs/kanban/boards/" + b.ID, Kind: "dir"})
		}
		return &Listing{Path: path, Entries: entries}, nil

	case len(rel) == 2 && rel[0] == "boards":
		boardID := rel[1]
		if _, err := p.store.GetBoard(boardID); err != nil {
			return nil, err
		}
		base := "/fs/kanban/boards/" + boardID
		return &Listing{Path: path, Entries: []Entry{
			{Name: "board.json", Path: base + "/board.json", Kind: "file"},
			{Name: "status", Path: base + "/status", Kind: "dir"},
		}}, nil

	case len(rel) == 3 && rel[0] == "boards" && rel[2] == "status":
		board, err := p.store.GetBoard(rel[1])
		if err != nil {
			return nil, err
		}
		base := "/fs/kanban/boards/" + board.ID + "/status"
		entries := make([]Entry, 0, len(board.Statuses))
		for _, status := range board.Statuses {
			entries = append(entries, Entry{Name: status, Path: base + "/" + status, Kind: "dir"})
		}
		return &Listing{Path: path, Entries: entries}, nil

	case len(rel) == 4 && rel[0] == "boards" && rel[2] == "status":
		boardID, status := rel[1], rel[3]
		cards, err := p.store.ListCards(boardID, status)
		if err != nil {
			return nil, err
		}
		base := "/fs/kanban/boards/" + boardID + "/status/" + status
		entries := make([]Entry, 0, len(cards))
		for _, c := range cards {
			entries = append(entries, Entry{Name: c.ID + ".md", Path: base + "/" + c.ID + ".md", Kind: "file"})
		}
		return &Listing{Path: path, Entries: entries}, nil
	}

	return nil, fmt.Errorf("unknown /fs/kanban path: %s", path)
}

// cardRef is a parsed card file path.
type cardRef struct {
	boardID string
	status  string
	cardID  string
}

func parseCardPath(path string) (*cardRef, error) {
	rel := kanbanRelParts(path)
	if len(rel) != 5 || rel[0] != "boards" || rel[2] != "status" || !strings.HasSuffix(rel[4], ".md") {
		return nil, fmt.Errorf("not a card path: %s", path)
	}
	return &cardRef{
		boardID: rel[1],
		status:  rel[3],
		cardID:  strings.TrimSuffix(rel[4], ".md"),
	}, nil
}

// Read serves board.json and card markdown documents.
func (p *KanbanProvider) Read(_ context.Context, path string, _ int) (*FileContent, error) {
	rel := kanbanRelParts(path)
	if len(rel) == 3 && rel[0] == "boards" && rel[2] == "board.json" {
		board, err := p.store.GetBoard(rel[1])
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(board, "", "  ")
		if err != nil {
			return nil, err
		}
		return &FileContent{Path: path, Content: string(data) + "\n"}, nil
	}

	ref, err := parseCardPath(path)
	if err != nil {
		return nil, err
	}
	card, err := p.store.GetCard(ref.boardID, ref.cardID)
	if err != nil {
		return nil, err
	}
	return &FileContent{Path: path, Content: kanban.RenderCardMarkdown(card)}, nil
}

// Write updates an existing card's title and body, or creates a new card
// when the file name does not match an existing card id.
func (p *KanbanProvider) Write(_ context.Context, path, content string) (*WriteResult, error) {
	ref, err := parseCardPath(path)
	if err != nil {
		return nil, err
	}
	title, body := kanban.ParseCardMarkdown(content)
	if title == "" {
		return nil, fmt.Errorf("card document needs a level-1 title heading")
	}

	_, err = p.store.GetCard(ref.boardID, ref.cardID)
	switch err {
	case nil:
		if _, err := p.store.UpdateCard(ref.boardID, ref.cardID, title, body); err != nil {
			return nil, err
		}
	case kanban.ErrCardNotFound:
		card, err := p.store.CreateCard(ref.boardID, title, ref.status, body)
		if err != nil {
			return nil, err
		}
		base := "/fs/kanban/boards/" + ref.boardID + "/status/" + ref.status
		return &WriteResult{Path: base + "/" + card.ID + ".md", OK: true}, nil
	default:
		return nil, err
	}
	return &WriteResult{Path: path, OK: true}, nil
}

// Move changes a card's status by moving its file between status folders.
func (p *KanbanProvider) Move(_ context.Context, fromPath, toPath string) (*MoveResult, error) {
	from, err := parseCardPath(fromPath)
	if err != nil {
		return nil, err
	}
	to, err := parseCardPath(toPath)
	if err != nil {
		return nil, err
	}
	if from.boardID != to.boardID {
		return nil, fmt.Errorf("cannot move cards between boards")
	}
	if from.cardID != to.cardID {
		return nil, fmt.Errorf("card file name must not change on move")
	}
	if _, err := p.store.MoveCard(from.boardID, from.cardID, to.status); err != nil {
		return nil, err
	}
	return &MoveResult{FromPath: fromPath, ToPath: toPath, OK: true}, nil
}
