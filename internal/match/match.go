// Package match finds which offered slot, if any, a normalized reply body
// refers to.
package match

import (
	"strings"

	"github.com/coachmail/coachmail/internal/mailtext"
	"github.com/coachmail/coachmail/internal/slots"
)

// Result is the outcome of matching a reply against the offered slots.
// Found reports whether a slot matched; Offer is meaningful only then.
type Result struct {
	Found bool
	Offer slots.Offer
}

// Matched wraps an offer in a positive Result.
func Matched(o slots.Offer) Result { return Result{Found: true, Offer: o} }

// NoMatch is the negative Result.
func NoMatch() Result { return Result{} }

// Matcher checks reply bodies against offers rendered by a Formatter.
type Matcher struct {
	formatter *slots.Formatter
}

// New creates a Matcher using the same formatter that rendered the offer
// emails. Matching only works while presentation and recognition share a
// template.
func New(formatter *slots.Formatter) *Matcher {
	return &Matcher{formatter: formatter}
}

// Match scans offers in order and returns the first whose rendered form
// appears in the reply. Two forms are tried per offer: the standard form
// against the normalized body, and the collapsed form against the
// lower-cased, space-stripped body. The collapsed check absorbs casing
// and spacing liberties customers take when quoting a slot.
func (m *Matcher) Match(body mailtext.Normalized, offers []slots.Offer) (Result, error) {
	for _, o := range offers {
		standard, err := m.formatter.Format(o)
		if err != nil {
			return NoMatch(), err
		}
		if strings.Contains(body.Text, standard) {
			return Matched(o), nil
		}
		collapsed, err := m.formatter.FormatCollapsed(o)
		if err != nil {
			return NoMatch(), err
		}
		if strings.Contains(body.Collapsed, collapsed) {
			return Matched(o), nil
		}
	}
	return NoMatch(), nil
}
