package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/k3a/html2text"
	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/coachmail/coachmail/internal/mailtext"
	"github.com/coachmail/coachmail/internal/timeparse"
)

// InboundMessage is the reduced view of a fetched message that the rest of
// the run works with.
type InboundMessage struct {
	ID         string
	ThreadID   string
	Sender     string
	SenderName string
	Subject    string
	Receipt    time.Time
	Body       string
}

// Outbound is a plain-text message to send.
type Outbound struct {
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// rfc822 renders the message in wire format for the Gmail raw field.
func (o Outbound) rfc822() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", o.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", o.Subject)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(o.Body)
	return []byte(b.String())
}

// fromAPIMessage extracts sender, subject, receipt time and a plain-text
// body from a full-format API message.
func fromAPIMessage(msg *gmailv1.Message, loc *time.Location) (*InboundMessage, error) {
	in := &InboundMessage{ID: msg.Id, ThreadID: msg.ThreadId}

	var from, date string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				from = h.Value
			case "subject":
				in.Subject = h.Value
			case "date":
				date = h.Value
			}
		}
	}
	if from == "" {
		return nil, fmt.Errorf("gmail: message %s has no From header", msg.Id)
	}
	in.Sender = mailtext.Address(from)
	in.SenderName = mailtext.SenderName(from)

	receipt, err := timeparse.Parse(date, loc)
	if err != nil {
		// Fall back to Gmail's own receipt stamp in ms since epoch.
		if msg.InternalDate == 0 {
			return nil, fmt.Errorf("gmail: message %s has no usable date: %w", msg.Id, err)
		}
		receipt = time.UnixMilli(msg.InternalDate).In(loc)
	}
	in.Receipt = receipt

	in.Body = extractBody(msg.Payload)
	if note := attachmentNote(msg.Payload); note != "" {
		in.Body += note
	}
	if strings.TrimSpace(in.Body) == "" && msg.Snippet != "" {
		in.Body = msg.Snippet
	}
	return in, nil
}

// extractBody walks the MIME tree preferring text/plain, falling back to
// converted text/html.
func extractBody(part *gmailv1.MessagePart) string {
	if plain := extractMIME(part, "text/plain"); plain != "" {
		return plain
	}
	if html := extractMIME(part, "text/html"); html != "" {
		return html2text.HTML2Text(html)
	}
	return ""
}

func extractMIME(part *gmailv1.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if body := extractMIME(sub, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// attachmentNote lists attached files so the archive records what arrived
// without storing the payloads.
func attachmentNote(part *gmailv1.MessagePart) string {
	files := attachmentList(part)
	if len(files) == 0 {
		return ""
	}
	return "\n[attachments: " + strings.Join(files, ", ") + "]"
}

func attachmentList(part *gmailv1.MessagePart) []string {
	if part == nil {
		return nil
	}
	var files []string
	if part.Filename != "" && part.Body != nil {
		files = append(files, fmt.Sprintf("%s (%s)", part.Filename, mailtext.HumanSize(part.Body.Size)))
	}
	for _, sub := range part.Parts {
		files = append(files, attachmentList(sub)...)
	}
	return files
}

func decodeBase64URL(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail uses unpadded base64url.
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
