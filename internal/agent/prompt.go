package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/ochre/internal/llm"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	MountNames  []string
	ExtraPrompt string
}

// BuildSystemPrompt constructs the system prompt for the model.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	b.WriteString("You are Ochre, a helpful local assistant.\n\n")
	b.WriteString(fmt.Sprintf("Current date: %s\n\n", time.Now().Format("2006-01-02")))

	b.WriteString("You have access to filesystem tools over a unified namespace. Prefer using the filesystem tools to inspect and edit data:\n")
	b.WriteString("- Real mounts are under /fs/mnt/<mountName>/...\n")
	b.WriteString("- Todos are under /fs/todos/...\n")
	b.WriteString("- Kanban boards (virtual) are under /fs/kanban/boards/...\n")
	b.WriteString("- Email (read-only, when configured) is under /fs/email/...\n\n")

	if len(cfg.MountNames) > 0 {
		b.WriteString("Configured mounts: " + strings.Join(cfg.MountNames, ", ") + "\n\n")
	}

	b.WriteString("Todo files use markdown checkboxes:\n")
	b.WriteString("- [ ] means not done\n")
	b.WriteString("- [x] means done\n\n")
	b.WriteString("When you want to update todos, edit the todo markdown file (usually /fs/todos/today.md) using fs_read/fs_write.\n\n")

	b.WriteString("Kanban virtual filesystem:\n")
	b.WriteString("- Boards: /fs/kanban/boards/<boardId>/\n")
	b.WriteString("- Status folders: /fs/kanban/boards/<boardId>/status/<statusName>/\n")
	b.WriteString("- Cards: /fs/kanban/boards/<boardId>/status/<statusName>/<cardId>.md\n")
	b.WriteString("- To change a card's status, move it between status folders using fs_move.\n")

	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}

// EnsureSystemPrompt prepends the system message exactly once.
func EnsureSystemPrompt(messages []llm.Message, system string) []llm.Message {
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		return messages
	}
	out := make([]llm.Message, 0, len(messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	out = append(out, messages...)
	return out
}
