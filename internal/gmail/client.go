// Package gmail wraps the Gmail REST API for the email virtual filesystem.
// Auth follows the installed-app OAuth flow: an OAuth client JSON plus a
// token JSON created out of band.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Label is a Gmail label.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessageMeta is the header summary of a message.
type MessageMeta struct {
	ID           string `json:"id"`
	Subject      string `json:"subject"`
	From         string `json:"from"`
	To           string `json:"to"`
	Date         string `json:"date"`
	InternalDate string `json:"internalDate,omitempty"` // RFC3339 UTC
	Snippet      string `json:"snippet"`
}

// Client is the mailbox surface the email provider needs. The production
// implementation talks to the Gmail API; tests use a scripted fake.
type Client interface {
	ListMessageIDs(ctx context.Context, query string, labelIDs []string, max int64) ([]string, error)
	FetchMetadata(ctx context.Context, ids []string) (map[string]MessageMeta, error)
	RenderMessage(ctx context.Context, id string) (string, error)
	ListLabels(ctx context.Context) ([]Label, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
}

// Service is the Gmail-backed Client.
type Service struct {
	svc    *gmailapi.Service
	userID string
}

// NewService builds an authenticated Gmail client from an OAuth client JSON
// and a previously issued token JSON. Token refresh is handled by the
// oauth2 transport.
func NewService(ctx context.Context, credentialsPath, tokenPath, userID string) (*Service, error) {
	credBytes, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("reading gmail credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(credBytes, gmailapi.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing gmail credentials: %w", err)
	}

	tokBytes, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("reading gmail token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokBytes, &tok); err != nil {
		return nil, fmt.Errorf("parsing gmail token: %w", err)
	}

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("building gmail service: %w", err)
	}
	if userID == "" {
		userID = "me"
	}
	return &Service{svc: svc, userID: userID}, nil
}

// ListMessageIDs returns message ids matching a Gmail search query and/or
// label filter, newest first.
func (s *Service) ListMessageIDs(ctx context.Context, query string, labelIDs []string, max int64) ([]string, error) {
	if max <= 0 {
		max = 50
	}
	call := s.svc.Users.Messages.List(s.userID).MaxResults(max).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	if len(labelIDs) > 0 {
		call = call.LabelIds(labelIDs...)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	return ids, nil
}

// FetchMetadata fetches header summaries for a set of message ids. Messages
// that fail to load are omitted rather than failing the whole set.
func (s *Service) FetchMetadata(ctx context.Context, ids []string) (map[string]MessageMeta, error) {
	out := make(map[string]MessageMeta, len(ids))
	for _, id := range ids {
		msg, err := s.svc.Users.Messages.Get(s.userID, id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "To", "Date").
			Context(ctx).Do()
		if err != nil {
			continue
		}
		out[id] = summarizeMessage(msg)
	}
	return out, nil
}

// RenderMessage fetches a full message and renders it as markdown.
func (s *Service) RenderMessage(ctx context.Context, id string) (string, error) {
	msg, err := s.svc.Users.Messages.Get(s.userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("fetching message: %w", err)
	}
	return RenderMessageMarkdown(msg), nil
}

// ListLabels returns the account's labels.
func (s *Service) ListLabels(ctx context.Context) ([]Label, error) {
	resp, err := s.svc.Users.Labels.List(s.userID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	out := make([]Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		if l.Id == "" {
			continue
		}
		name := l.Name
		if name == "" {
			name = l.Id
		}
		out = append(out, Label{ID: l.Id, Name: name})
	}
	return out, nil
}

// ModifyLabels adds and removes labels on a message.
func (s *Service) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	_, err := s.svc.Users.Messages.Modify(s.userID, id, &gmailapi.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("modifying message labels: %w", err)
	}
	return nil
}
