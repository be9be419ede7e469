// Package gcal wraps the Google Calendar API for listing upcoming events
// and updating the ones that get booked.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarv3 "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/coachmail/coachmail/internal/retry"
	"github.com/coachmail/coachmail/internal/slots"
	"github.com/coachmail/coachmail/internal/timeparse"
	"github.com/coachmail/coachmail/pkg/logging"
)

// Client wraps the Calendar service for a single calendar.
type Client struct {
	svc        *calendarv3.Service
	calendarID string
	policy     retry.Policy
	loc        *time.Location
	logger     *logging.Logger
}

// NewClient builds a Client for calendarID, "primary" when empty.
func NewClient(svc *calendarv3.Service, calendarID string, policy retry.Policy, loc *time.Location, logger *logging.Logger) *Client {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{svc: svc, calendarID: calendarID, policy: policy, loc: loc, logger: logger}
}

// NewService authenticates against Calendar with the same OAuth client and
// token files the Gmail side uses.
func NewService(ctx context.Context, credentialsPath, tokenPath string) (*calendarv3.Service, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("gcal: read credentials at %s: %w", credentialsPath, err)
	}
	cfg, err := google.ConfigFromJSON(b, calendarv3.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("gcal: parse oauth config: %w", err)
	}
	tok, err := readToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("gcal: read token at %s: %w", tokenPath, err)
	}
	svc, err := calendarv3.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("gcal: create service: %w", err)
	}
	return svc, nil
}

// ListUpcoming returns up to limit future events in start order.
func (c *Client) ListUpcoming(ctx context.Context, now time.Time, limit int64) ([]slots.Event, error) {
	res, err := retry.DoValue(ctx, c.policy, "calendar list", func() (*calendarv3.Events, error) {
		return c.svc.Events.List(c.calendarID).
			TimeMin(now.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(limit).
			Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("gcal: list upcoming: %w", err)
	}

	events := make([]slots.Event, 0, len(res.Items))
	for _, item := range res.Items {
		ev, err := toEvent(item, c.loc)
		if err != nil {
			c.logger.Warn("skipping calendar event with bad start", "event_id", item.Id, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Get fetches a single event by ID.
func (c *Client) Get(ctx context.Context, eventID string) (*calendarv3.Event, error) {
	ev, err := retry.DoValue(ctx, c.policy, "calendar get", func() (*calendarv3.Event, error) {
		return c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("gcal: get event %s: %w", eventID, err)
	}
	return ev, nil
}

// Update writes the event back.
func (c *Client) Update(ctx context.Context, event *calendarv3.Event) error {
	err := c.policy.Do(ctx, "calendar update", func() error {
		_, err := c.svc.Events.Update(c.calendarID, event.Id, event).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("gcal: update event %s: %w", event.Id, err)
	}
	return nil
}

// toEvent reduces an API event to the fields offer building needs. All-day
// events carry a bare date and start at midnight in the configured zone.
func toEvent(item *calendarv3.Event, loc *time.Location) (slots.Event, error) {
	if item.Start == nil {
		return slots.Event{}, fmt.Errorf("gcal: event %s has no start", item.Id)
	}
	raw := item.Start.DateTime
	if raw == "" {
		raw = item.Start.Date
	}
	start, err := timeparse.Parse(raw, loc)
	if err != nil {
		return slots.Event{}, fmt.Errorf("gcal: event %s start %q: %w", item.Id, raw, err)
	}
	return slots.Event{
		ID:       item.Id,
		Start:    start,
		Summary:  item.Summary,
		Location: item.Location,
	}, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}
