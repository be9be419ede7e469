// Package mailtext normalizes raw message bodies so free-text replies can be
// matched against rendered slot offers, and extracts sender details from
// address headers.
package mailtext

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyBody reports a message body that is absent or unreadable. Callers
// must treat it as "no match", never as a crash.
var ErrEmptyBody = errors.New("mailtext: message body is empty or unreadable")

// Quoted-reply markers: ">" for plain-text quoting, "**" for quoted HTML
// converted to text.
const (
	plainQuoteMarker = ">"
	htmlQuoteMarker  = "**"
)

// Normalized holds the two derived forms of a reply body. Both are checked
// during matching; a hit on either is sufficient.
type Normalized struct {
	// Text has the quoted tail removed, double spaces collapsed and
	// newlines stripped. Used for the exact substring match.
	Text string
	// Collapsed is Text lower-cased with all spaces removed. Tolerant of
	// spacing and case differences in the reply.
	Collapsed string
}

// Normalize derives both match forms from a raw body. The body is truncated
// at the earliest quoted-reply marker so the customer's own words are kept
// and the quoted offer below them cannot defeat matching.
func Normalize(rawBody string) (Normalized, error) {
	if rawBody == "" {
		return Normalized{}, ErrEmptyBody
	}

	body := rawBody
	if idx := earliestMarker(rawBody); idx >= 0 {
		body = rawBody[:idx]
	}

	text := strings.ReplaceAll(body, "  ", " ")
	text = strings.ReplaceAll(text, "\n", "")

	return Normalized{
		Text:      text,
		Collapsed: Collapse(text),
	}, nil
}

// Collapse lower-cases s and removes every space. The same transformation is
// applied to rendered slot strings, so the loose comparison stays symmetric.
func Collapse(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

func earliestMarker(s string) int {
	plain := strings.Index(s, plainQuoteMarker)
	html := strings.Index(s, htmlQuoteMarker)
	switch {
	case plain < 0:
		return html
	case html < 0:
		return plain
	case plain < html:
		return plain
	default:
		return html
	}
}

var addressRE = regexp.MustCompile(`<([^>]+)>`)

// Address extracts the bare address from a From header like
// `"Jan Kowalski" <jan@example.com>`. A header that is already a bare
// address is returned trimmed; an empty header yields "".
func Address(fromHeader string) string {
	if m := addressRE.FindStringSubmatch(fromHeader); m != nil {
		return strings.TrimSpace(m[1])
	}
	trimmed := strings.TrimSpace(fromHeader)
	if strings.Contains(trimmed, "@") {
		return trimmed
	}
	return ""
}

// SenderName extracts the display name from a From header, defaulting to
// "Customer" when the header carries none.
func SenderName(fromHeader string) string {
	name := fromHeader
	if idx := strings.Index(fromHeader, "<"); idx >= 0 {
		name = fromHeader[:idx]
	}
	name = strings.TrimSpace(strings.ReplaceAll(name, `"`, ""))
	if name == "" || strings.Contains(name, "@") {
		return "Customer"
	}
	return name
}

// HumanSize renders a byte count in a human-readable unit, for attachment
// notes in the daily archive.
func HumanSize(b int64) string {
	const factor = 1024.0
	size := float64(b)
	for _, unit := range []string{"", "K", "M", "G", "T", "P", "E", "Z"} {
		if size < factor {
			return fmt.Sprintf("%.2f%sB", size, unit)
		}
		size /= factor
	}
	return fmt.Sprintf("%.2fYB", size)
}
