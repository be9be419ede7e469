package slots

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coachmail/coachmail/internal/mailtext"
)

// Formatter renders an Offer into the canonical slot string. The same
// template drives presentation in offer emails and recognition in replies,
// so any template change invalidates matching against earlier offers.
type Formatter struct {
	template string
	weekdays map[string]string
}

// NewFormatter builds a Formatter from a template with {date}, {weekday},
// {time} and {location} placeholders and a map of lower-case English weekday
// names to their localized forms. Missing translations fall back to English.
func NewFormatter(template string, weekdays map[string]string) *Formatter {
	return &Formatter{template: template, weekdays: weekdays}
}

// Format renders the standard form, e.g.
// "2024-01-01 (Poniedziałek) at 18:00 in GymA".
func (f *Formatter) Format(o Offer) (string, error) {
	if o.Start.IsZero() {
		return "", fmt.Errorf("slots: cannot format offer with zero start time")
	}
	if o.Location == "" {
		return "", fmt.Errorf("slots: cannot format offer without location")
	}

	r := strings.NewReplacer(
		"{date}", o.Start.Format("2006-01-02"),
		"{weekday}", f.weekdayName(o),
		"{time}", o.Start.Format("15:04"),
		"{location}", o.Location,
	)
	return r.Replace(f.template), nil
}

// FormatCollapsed renders the loose form: the standard form lower-cased with
// all spaces removed, mirroring the collapsed reply body.
func (f *Formatter) FormatCollapsed(o Offer) (string, error) {
	s, err := f.Format(o)
	if err != nil {
		return "", err
	}
	return mailtext.Collapse(s), nil
}

// RenderList renders offers one per line for the offer reply body,
// preserving their order.
func (f *Formatter) RenderList(offers []Offer) (string, error) {
	lines := make([]string, 0, len(offers))
	for _, o := range offers {
		s, err := f.Format(o)
		if err != nil {
			return "", err
		}
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n"), nil
}

func (f *Formatter) weekdayName(o Offer) string {
	english := strings.ToLower(o.Start.Weekday().String())
	name, ok := f.weekdays[english]
	if !ok || name == "" {
		name = english
	}
	return capitalize(name)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
