// Package booking turns a matched reply into a calendar booking and a
// confirmation email.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	calendarv3 "google.golang.org/api/calendar/v3"

	"github.com/coachmail/coachmail/internal/config"
	"github.com/coachmail/coachmail/internal/gmail"
	"github.com/coachmail/coachmail/internal/slots"
	"github.com/coachmail/coachmail/pkg/logging"
)

// ErrSlotTaken means the event no longer carries the free marker, so
// someone else booked it between the offer and the reply.
var ErrSlotTaken = errors.New("booking: slot no longer available")

// Calendar is the slice of the calendar client booking needs.
type Calendar interface {
	Get(ctx context.Context, eventID string) (*calendarv3.Event, error)
	Update(ctx context.Context, event *calendarv3.Event) error
}

// Mailer sends the confirmation.
type Mailer interface {
	Send(ctx context.Context, out gmail.Outbound) error
}

// Customer identifies who the slot is booked for.
type Customer struct {
	Name    string
	Address string
}

// Booker claims calendar slots for customers.
type Booker struct {
	cal       Calendar
	mail      Mailer
	formatter *slots.Formatter
	locale    config.Locale
	marker    string
	logger    *logging.Logger
}

// New creates a Booker. The marker is the summary that identifies a still
// free slot; booking rechecks it before claiming.
func New(cal Calendar, mail Mailer, formatter *slots.Formatter, locale config.Locale, marker string, logger *logging.Logger) *Booker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Booker{
		cal:       cal,
		mail:      mail,
		formatter: formatter,
		locale:    locale,
		marker:    marker,
		logger:    logger,
	}
}

// Book claims the offered slot for the customer: the event is retitled to
// "<training> - <name>", the customer is added as an attendee and a
// confirmation email goes out on the reply thread. The calendar update
// happens before the confirmation, so a failed send leaves a booked slot
// that only needs the mail resent.
func (b *Booker) Book(ctx context.Context, offer slots.Offer, customer Customer, threadID string) error {
	event, err := b.cal.Get(ctx, offer.EventID)
	if err != nil {
		return fmt.Errorf("booking: refetch event: %w", err)
	}
	if !strings.EqualFold(event.Summary, b.marker) {
		return fmt.Errorf("%w: event %s is now %q", ErrSlotTaken, event.Id, event.Summary)
	}

	event.Summary = fmt.Sprintf("%s - %s", b.locale.TrainingWord, customer.Name)
	event.Attendees = append(event.Attendees, &calendarv3.EventAttendee{Email: customer.Address})
	if err := b.cal.Update(ctx, event); err != nil {
		return fmt.Errorf("booking: update event: %w", err)
	}
	b.logger.Info("slot booked",
		"event_id", event.Id,
		"customer", customer.Address,
		"start", offer.Start,
	)

	slot, err := b.formatter.Format(offer)
	if err != nil {
		return fmt.Errorf("booking: format slot: %w", err)
	}
	subject, body, err := b.locale.RenderConfirmation(customer.Name, slot)
	if err != nil {
		return fmt.Errorf("booking: render confirmation: %w", err)
	}
	if err := b.mail.Send(ctx, gmail.Outbound{
		To:       customer.Address,
		Subject:  subject,
		Body:     body,
		ThreadID: threadID,
	}); err != nil {
		return fmt.Errorf("booking: send confirmation: %w", err)
	}
	return nil
}
