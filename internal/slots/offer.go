// Package slots models offerable training slots: building them from
// calendar events and rendering them into the canonical human-readable
// string used both to present offers and to recognize them in replies.
package slots

import (
	"errors"
	"strings"
	"time"

	"github.com/coachmail/coachmail/pkg/logging"
)

// ErrNoOffers reports that the calendar holds no offerable slot at all. The
// system cannot answer inquiries without candidates, so this is fatal for
// the run.
var ErrNoOffers = errors.New("slots: no offerable calendar events found")

// Event is the calendar shape offers are built from.
type Event struct {
	ID       string
	Start    time.Time
	Summary  string
	Location string
}

// Offer is a single offerable slot, immutable once built for a run.
type Offer struct {
	EventID  string
	Start    time.Time
	Summary  string
	Location string
}

// Config holds the offer-building knobs.
type Config struct {
	// Marker is the event summary that marks a slot as offerable,
	// compared case-insensitively.
	Marker string
	// MinWarning is the offer count below which a low-availability warning
	// is logged. Processing continues.
	MinWarning int
}

// BuildOffers filters calendar events down to offerable slots, preserving
// retrieval order. Marker-named events without a location are logged and
// excluded, since a slot with no location can be shown to nobody. Returns
// ErrNoOffers when nothing qualifies.
func BuildOffers(events []Event, cfg Config, logger *logging.Logger) ([]Offer, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var offers []Offer
	for _, ev := range events {
		if !strings.EqualFold(ev.Summary, cfg.Marker) {
			continue
		}
		if ev.Location == "" {
			logger.Error("offerable slot has no location, excluded from offers",
				"marker", cfg.Marker,
				"start", ev.Start.Format(time.RFC3339),
			)
			continue
		}
		offers = append(offers, Offer{
			EventID:  ev.ID,
			Start:    ev.Start,
			Summary:  ev.Summary,
			Location: ev.Location,
		})
	}

	if len(offers) == 0 {
		return nil, ErrNoOffers
	}

	if cfg.MinWarning > 0 && len(offers) < cfg.MinWarning {
		first, last := offers[0].Start, offers[0].Start
		for _, o := range offers[1:] {
			if o.Start.Before(first) {
				first = o.Start
			}
			if o.Start.After(last) {
				last = o.Start
			}
		}
		logger.Warn("low slot availability",
			"count", len(offers),
			"first", first.Format("2006-01-02"),
			"last", last.Format("2006-01-02"),
		)
	}

	return offers, nil
}
