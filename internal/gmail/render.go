package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
)

func headerMap(headers []*gmailapi.MessagePartHeader) map[string]string {
	out := map[string]string{}
	for _, h := range headers {
		if h == nil {
			continue
		}
		k := strings.TrimSpace(h.Name)
		if k != "" {
			out[k] = strings.TrimSpace(h.Value)
		}
	}
	return out
}

// decodeBody decodes Gmail's base64url body data, which may arrive with or
// without padding.
func decodeBody(data string) string {
	if data == "" {
		return ""
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(b)
}

// pickBodyText walks MIME parts and returns the concatenated text/plain and
// text/html bodies.
func pickBodyText(payload *gmailapi.MessagePart) (plain, html string) {
	if payload == nil {
		return "", ""
	}
	var plains, htmls []string
	stack := []*gmailapi.MessagePart{payload}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p == nil {
			continue
		}
		if p.Body != nil && p.Body.Data != "" {
			decoded := decodeBody(p.Body.Data)
			switch {
			case decoded == "":
			case p.MimeType == "text/plain":
				plains = append(plains, decoded)
			case p.MimeType == "text/html":
				htmls = append(htmls, decoded)
			}
		}
		for i := len(p.Parts) - 1; i >= 0; i-- {
			stack = append(stack, p.Parts[i])
		}
	}
	return strings.Join(plains, "\n\n"), strings.Join(htmls, "\n\n")
}

func formatInternalDate(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// summarizeMessage lifts the header view out of a metadata-format message.
func summarizeMessage(msg *gmailapi.Message) MessageMeta {
	var headers map[string]string
	if msg.Payload != nil {
		headers = headerMap(msg.Payload.Headers)
	}
	return MessageMeta{
		ID:           msg.Id,
		Subject:      headers["Subject"],
		From:         headers["From"],
		To:           headers["To"],
		Date:         headers["Date"],
		InternalDate: formatInternalDate(msg.InternalDate),
		Snippet:      msg.Snippet,
	}
}

func headerLine(b *strings.Builder, name, value string) {
	if value == "" {
		value = "(missing)"
	}
	fmt.Fprintf(b, "- **%s**: %s\n", name, value)
}

// RenderMessageMarkdown renders a full-format message as a readable
// markdown document: headers, snippet, then the best available body.
func RenderMessageMarkdown(msg *gmailapi.Message) string {
	var headers map[string]string
	if msg.Payload != nil {
		headers = headerMap(msg.Payload.Headers)
	}
	subject := headers["Subject"]
	if subject == "" {
		subject = "(no subject)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", subject)
	b.WriteString("## Headers\n")
	headerLine(&b, "From", headers["From"])
	headerLine(&b, "To", headers["To"])
	headerLine(&b, "Date", headers["Date"])
	if d := formatInternalDate(msg.InternalDate); d != "" {
		headerLine(&b, "InternalDate (UTC)", d)
	}
	headerLine(&b, "Message-ID", headers["Message-ID"])
	if len(msg.LabelIds) > 0 {
		headerLine(&b, "Labels", strings.Join(msg.LabelIds, ", "))
	}
	b.WriteString("\n")

	if msg.Snippet != "" {
		b.WriteString("## Snippet\n\n")
		b.WriteString(msg.Snippet)
		b.WriteString("\n\n")
	}

	plain, html := pickBodyText(msg.Payload)
	switch {
	case plain != "":
		b.WriteString("## Body (text/plain)\n\n")
		b.WriteString(strings.TrimSpace(plain))
		b.WriteString("\n")
	case html != "":
		b.WriteString("## Body (text/html)\n\n```html\n")
		b.WriteString(strings.TrimSpace(html))
		b.WriteString("\n```\n")
	default:
		b.WriteString("## Body\n\n(No body text parts found.)\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
