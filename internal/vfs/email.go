package vfs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/soyeahso/ochre/internal/gmail"
)

const emailReadme = `# /fs/email (Gmail, read-only)

Gmail mailboxes exposed as a virtual filesystem.

## Structure

- ` + "`inbox`" + `: Messages in Inbox (not starred)
- ` + "`starred`" + `: Messages in Inbox (starred)
- ` + "`archive`" + `: Messages archived (not in Inbox)
- ` + "`labels`" + `: Access by specific Gmail label

Message files cannot be edited. Moving a message file between the inbox,
starred, and archive folders updates its Gmail labels.

## Configure

Set ` + "`gmail.credentialsPath`" + ` and ` + "`gmail.tokenPath`" + ` in the
config to an OAuth client JSON and a token JSON created by the auth flow.
`

// EmailProvider exposes a Gmail account read-only under /fs/email. Message
// bodies are rendered as markdown; moving between the inbox, starred, and
// archive folders maps to label changes.
type EmailProvider struct {
	account string
	client  gmail.Client
}

// NewEmailProvider creates the /fs/email provider for one account.
func NewEmailProvider(account string, client gmail.Client) *EmailProvider {
	if account == "" {
		account = "gmail"
	}
	return &EmailProvider{account: account, client: client}
}

// CanHandle claims /fs/email and everything under it.
func (p *EmailProvider) CanHandle(path string) bool {
	return path == "/fs/email" || strings.HasPrefix(path, "/fs/email/")
}

func emailRelParts(path string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, "/fs/email"), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// snakeSlug lowercases a subject into a filename-safe slug.
func snakeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prevUnderscore := false
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
			prevUnderscore = false
		} else if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	slug := strings.Trim(b.String(), "_")
	if len(slug) > 64 {
		slug = strings.TrimRight(slug[:64], "_")
	}
	if slug == "" {
		return "message"
	}
	return slug
}

// truncateUTF8 cuts s to at most capBytes without splitting a rune.
func truncateUTF8(s string, capBytes int) string {
	if len(s) <= capBytes {
		return s
	}
	cut := s[:capBytes]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// messageFileName builds <date>--<slug>--<id>.email.md.
func messageFileName(meta gmail.MessageMeta) string {
	datePart := "unknown-date"
	if len(meta.InternalDate) >= 10 {
		datePart = meta.InternalDate[:10]
	}
	return fmt.Sprintf("%s--%s--%s.email.md", datePart, snakeSlug(meta.Subject), meta.ID)
}

// messageIDFromFileName extracts the trailing message id.
func messageIDFromFileName(name string) (string, error) {
	if !strings.HasSuffix(name, ".email.md") {
		return "", fmt.Errorf("not an email file: %s", name)
	}
	stem := strings.TrimSuffix(name, ".email.md")
	parts := strings.Split(stem, "--")
	id := parts[len(parts)-1]
	if id == "" {
		return "", fmt.Errorf("missing message id in file name: %s", name)
	}
	return id, nil
}

// folderQueries maps the virtual folders to Gmail searches.
var folderQueries = map[string]string{
	"inbox":   "in:inbox -is:starred",
	"starred": "in:inbox is:starred",
	"archive": "-in:inbox",
}

func (p *EmailProvider) listMessages(ctx context.Context, path, query string, labelIDs []string) (*Listing, error) {
	ids, err := p.client.ListMessageIDs(ctx, query, labelIDs, 50)
	if err != nil {
		return nil, fmt.Errorf("gmail messages unavailable: %w", err)
	}
	meta, err := p.client.FetchMetadata(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("gmail messages unavailable: %w", err)
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		m, ok := meta[id]
		if !ok {
			m = gmail.MessageMeta{ID: id}
		}
		name := messageFileName(m)
		entries = append(entries, Entry{Name: name, Path: path + "/" + name, Kind: "file"})
	}
	return &Listing{Path: path, Entries: entries}, nil
}

// List serves the account, folder, and label directory levels.
func (p *EmailProvider) List(ctx context.Context, path string) (*Listing, error) {
	rel := emailRelParts(path)

	switch {
	case len(rel) == 0:
		return &Listing{Path: "/fs/email", Entries: []Entry{
			{Name: "README.md", Path: "/fs/email/README.md", Kind: "file"},
			{Name: p.account, Path: "/fs/email/" + p.account, Kind: "dir"},
		}}, nil

	case len(rel) == 1 && rel[0] == p.account:
		base := "/fs/email/" + p.account
		return &Listing{Path: path, Entries: []Entry{
			{Name: "inbox", Path: base + "/inbox", Kind: "dir"},
			{Name: "starred", Path: base + "/starred", Kind: "dir"},
			{Name: "archive", Path: base + "/archive", Kind: "dir"},
			{Name: "labels", Path: base + "/labels", Kind: "dir"},
		}}, nil

	case len(rel) == 2 && rel[0] == p.account:
		if query, ok := folderQueries[rel[1]]; ok {
			return p.listMessages(ctx, path, query, nil)
		}
		if rel[1] == "labels" {
			labels, err := p.client.ListLabels(ctx)
			if err != nil {
				return nil, fmt.Errorf("gmail labels unavailable: %w", err)
			}
			sort.Slice(labels, func(i, j int) bool {
				return strings.ToLower(labels[i].Name) < strings.ToLower(labels[j].Name)
			})
			entries := make([]Entry, 0, len(labels))
			for _, l := range labels {
				entries = append(entries, Entry{Name: l.Name, Path: path + "/" + l.ID, Kind: "dir"})
			}
			return &Listing{Path: path, Entries: entries}, nil
		}

	case len(rel) == 3 && rel[0] == p.account && rel[1] == "labels":
		return p.listMessages(ctx, path, "", []string{rel[2]})
	}

	return nil, fmt.Errorf("unknown /fs/email path: %s", path)
}

// Read serves the README and rendered messages.
func (p *EmailProvider) Read(ctx context.Context, path string, maxBytes int) (*FileContent, error) {
	if path == "/fs/email/README.md" {
		return &FileContent{Path: path, Content: truncateUTF8(emailReadme, maxBytes)}, nil
	}

	rel := emailRelParts(path)
	var fileName string
	switch {
	case len(rel) == 3 && rel[0] == p.account && folderQueries[rel[1]] != "":
		fileName = rel[2]
	case len(rel) == 4 && rel[0] == p.account && rel[1] == "labels":
		fileName = rel[3]
	default:
		return nil, fmt.Errorf("unknown /fs/email file: %s", path)
	}

	id, err := messageIDFromFileName(fileName)
	if err != nil {
		return nil, err
	}
	md, err := p.client.RenderMessage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("gmail message unavailable: %w", err)
	}
	return &FileContent{Path: path, Content: truncateUTF8(md, maxBytes)}, nil
}

// Write always fails: the mailbox is read-only.
func (p *EmailProvider) Write(_ context.Context, _, _ string) (*WriteResult, error) {
	return nil, fmt.Errorf("email provider is read-only")
}

// Move changes a message's labels to match the target folder.
func (p *EmailProvider) Move(ctx context.Context, fromPath, toPath string) (*MoveResult, error) {
	fromRel := emailRelParts(fromPath)
	toRel := emailRelParts(toPath)
	if len(fromRel) < 3 || len(toRel) != 3 || fromRel[0] != p.account || toRel[0] != p.account {
		return nil, fmt.Errorf("move target must be inbox, starred, or archive")
	}

	id, err := messageIDFromFileName(fromRel[len(fromRel)-1])
	if err != nil {
		return nil, err
	}

	var add, remove []string
	switch toRel[1] {
	case "inbox":
		add = []string{"INBOX"}
		remove = []string{"STARRED"}
	case "starred":
		add = []string{"INBOX", "STARRED"}
	case "archive":
		// Gmail's archive just drops the INBOX label.
		remove = []string{"INBOX"}
	default:
		return nil, fmt.Errorf("moving to %q is not supported; target must be inbox, starred, or archive", toRel[1])
	}

	if err := p.client.ModifyLabels(ctx, id, add, remove); err != nil {
		return nil, fmt.Errorf("moving message: %w", err)
	}
	return &MoveResult{FromPath: fromPath, ToPath: toPath, OK: true}, nil
}
