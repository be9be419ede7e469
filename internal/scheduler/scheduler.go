// Package scheduler drives one correspondence run: read unprocessed mail,
// classify each message, match replies to offered slots, book what matched
// and answer new inquiries with the current offers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/coachmail/coachmail/internal/archive"
	"github.com/coachmail/coachmail/internal/booking"
	"github.com/coachmail/coachmail/internal/classify"
	"github.com/coachmail/coachmail/internal/config"
	"github.com/coachmail/coachmail/internal/gmail"
	"github.com/coachmail/coachmail/internal/ledger"
	"github.com/coachmail/coachmail/internal/mailtext"
	"github.com/coachmail/coachmail/internal/match"
	"github.com/coachmail/coachmail/internal/notify"
	"github.com/coachmail/coachmail/internal/observability/metrics"
	"github.com/coachmail/coachmail/internal/slots"
	"github.com/coachmail/coachmail/pkg/logging"
)

// Mail is the slice of the Gmail client the coordinator uses.
type Mail interface {
	Search(ctx context.Context, query string) ([]string, error)
	Fetch(ctx context.Context, id string) (*gmail.InboundMessage, error)
	BatchMarkProcessed(ctx context.Context, ids []string) error
	Send(ctx context.Context, out gmail.Outbound) error
}

// Calendar lists the upcoming events offers are built from.
type Calendar interface {
	ListUpcoming(ctx context.Context, now time.Time, limit int64) ([]slots.Event, error)
}

// SlotBooker claims a matched slot.
type SlotBooker interface {
	Book(ctx context.Context, offer slots.Offer, customer booking.Customer, threadID string) error
}

// Archiver records the inquiries the run answered.
type Archiver interface {
	WriteDaily(ctx context.Context, day time.Time, records []archive.Record) (string, error)
}

// Summary is what one run did.
type Summary struct {
	RunID         string
	Offers        int
	Processed     int
	Questions     int
	Responses     int
	Matched       int
	Unmatched     int
	Indeterminate int
	OffersSent    int
	DryRun        bool
}

// Coordinator wires the run together. It is single-threaded on purpose:
// ledger reads and writes stay trivially consistent because nothing runs
// concurrently within an account.
type Coordinator struct {
	cfg       *config.Config
	locale    config.Locale
	mail      Mail
	cal       Calendar
	booker    SlotBooker
	ledger    *ledger.Ledger
	archiver  Archiver
	operator  *notify.Operator
	metrics   *metrics.RunMetrics
	formatter *slots.Formatter
	matcher   *match.Matcher
	logger    *logging.Logger
	now       func() time.Time
}

// New creates a Coordinator. operator and runMetrics may be nil.
func New(
	cfg *config.Config,
	locale config.Locale,
	mail Mail,
	cal Calendar,
	booker SlotBooker,
	ldg *ledger.Ledger,
	archiver Archiver,
	operator *notify.Operator,
	runMetrics *metrics.RunMetrics,
	logger *logging.Logger,
) *Coordinator {
	if logger == nil {
		logger = logging.Default()
	}
	formatter := slots.NewFormatter(locale.SlotTemplate, locale.Weekdays)
	return &Coordinator{
		cfg:       cfg,
		locale:    locale,
		mail:      mail,
		cal:       cal,
		booker:    booker,
		ledger:    ldg,
		archiver:  archiver,
		operator:  operator,
		metrics:   runMetrics,
		formatter: formatter,
		matcher:   match.New(formatter),
		logger:    logger,
		now:       time.Now,
	}
}

// pendingOffer is a new inquiry waiting for the end-of-run offer reply.
type pendingOffer struct {
	msg *gmail.InboundMessage
}

// Run executes one complete correspondence pass.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	start := c.now()
	logger := c.logger.With("run_id", runID)

	ctx, span := otel.Tracer("coachmail/scheduler").Start(ctx, "run")
	span.SetAttributes(attribute.String("run.id", runID))
	defer span.End()

	summary, err := c.run(ctx, runID, logger)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		c.metrics.ObserveRun("error", elapsed)
		c.operator.RunFailed(ctx, runID, c.now(), err)
		return nil, err
	}
	c.metrics.ObserveRun("ok", elapsed)
	logger.Info("run complete",
		"offers", summary.Offers,
		"processed", summary.Processed,
		"questions", summary.Questions,
		"responses", summary.Responses,
		"matched", summary.Matched,
		"unmatched", summary.Unmatched,
		"indeterminate", summary.Indeterminate,
		"offers_sent", summary.OffersSent,
		"dry_run", summary.DryRun,
	)
	return summary, nil
}

func (c *Coordinator) run(ctx context.Context, runID string, logger *logging.Logger) (*Summary, error) {
	summary := &Summary{RunID: runID, DryRun: c.cfg.DryRun}

	// Reread storage on every pass so watch mode never works from a stale
	// view of the waiting list.
	if err := c.ledger.Reload(ctx); err != nil {
		return nil, fmt.Errorf("scheduler: load ledger: %w", err)
	}

	offers, err := c.loadOffers(ctx, logger)
	if err != nil {
		return nil, err
	}
	summary.Offers = len(offers)
	c.metrics.SetOfferedSlots(len(offers))

	query := fmt.Sprintf("is:unread newer_than:%dd", c.cfg.SearchWindowDays)
	ids, err := c.mail.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scheduler: search mail: %w", err)
	}
	logger.Info("inbox searched", "query", query, "messages", len(ids))

	var (
		records   []archive.Record
		pending   []pendingOffer
		processed []string
	)
	for _, id := range ids {
		msg, err := c.mail.Fetch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("scheduler: fetch message: %w", err)
		}
		summary.Processed++

		kind := classify.Classify(c.ledger, msg.Sender, msg.Receipt)
		c.metrics.ObserveMessage(kind.String())
		switch kind {
		case classify.Question:
			summary.Questions++
			if c.isInquiry(msg) {
				pending = append(pending, pendingOffer{msg: msg})
				records = append(records, archive.Record{
					From:    msg.Sender,
					Subject: msg.Subject,
					Receipt: msg.Receipt,
					Body:    msg.Body,
				})
			} else {
				logger.Info("question without inquiry keywords ignored", "from", msg.Sender)
			}
			processed = append(processed, id)

		case classify.Response:
			summary.Responses++
			if err := c.handleResponse(ctx, logger, msg, offers, summary); err != nil {
				return nil, err
			}
			processed = append(processed, id)

		case classify.Indeterminate:
			summary.Indeterminate++
			awaiting, _ := c.ledger.EarliestAwaiting(msg.Sender)
			logger.Warn("message predates outstanding offer",
				"from", msg.Sender,
				"receipt", msg.Receipt,
				"awaiting_since", awaiting,
			)
			processed = append(processed, id)
		}
	}

	if err := c.sendOffers(ctx, logger, pending, offers, summary); err != nil {
		return nil, err
	}
	if err := c.ledger.Flush(ctx); err != nil {
		return nil, err
	}

	switch {
	case c.cfg.DryRun:
	case summary.Unmatched > 0:
		// One reply nobody could act on keeps the whole batch unread, so
		// the inbox shows the full picture the engine saw.
		logger.Warn("unmatched reply in batch, leaving all messages unread",
			"unmatched", summary.Unmatched,
		)
	default:
		if err := c.mail.BatchMarkProcessed(ctx, processed); err != nil {
			return nil, fmt.Errorf("scheduler: mark processed: %w", err)
		}
	}

	if _, err := c.archiver.WriteDaily(ctx, c.now(), records); err != nil {
		// Archive failure should not undo a completed run.
		logger.Error("archive write failed", "error", err)
	}
	return summary, nil
}

// loadOffers turns upcoming calendar events into the run's offer list. No
// free slots is fatal: the engine has nothing to propose and silence is
// worse than stopping.
func (c *Coordinator) loadOffers(ctx context.Context, logger *logging.Logger) ([]slots.Offer, error) {
	events, err := c.cal.ListUpcoming(ctx, c.now(), int64(c.cfg.CalendarListLimit))
	if err != nil {
		return nil, fmt.Errorf("scheduler: list calendar: %w", err)
	}
	offers, err := slots.BuildOffers(events, slots.Config{
		Marker:     c.cfg.OfferMarker,
		MinWarning: c.cfg.MinOfferWarning,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("scheduler: build offers: %w", err)
	}
	if len(offers) < c.cfg.MinOfferWarning {
		c.operator.LowAvailability(ctx, len(offers), c.cfg.MinOfferWarning)
	}
	return offers, nil
}

// handleResponse matches a reply against the offers and books on success.
func (c *Coordinator) handleResponse(ctx context.Context, logger *logging.Logger, msg *gmail.InboundMessage, offers []slots.Offer, summary *Summary) error {
	normalized, err := mailtext.Normalize(msg.Body)
	if err != nil {
		if errors.Is(err, mailtext.ErrEmptyBody) {
			logger.Warn("reply with empty body", "from", msg.Sender)
			c.unmatched(ctx, msg, summary)
			return nil
		}
		return fmt.Errorf("scheduler: normalize reply: %w", err)
	}

	result, err := c.matcher.Match(normalized, offers)
	if err != nil {
		return fmt.Errorf("scheduler: match reply: %w", err)
	}
	if !result.Found {
		logger.Info("reply matched no offered slot", "from", msg.Sender)
		c.unmatched(ctx, msg, summary)
		return nil
	}

	customer := booking.Customer{Name: msg.SenderName, Address: msg.Sender}
	if err := c.booker.Book(ctx, result.Offer, customer, msg.ThreadID); err != nil {
		// A vanished slot is handled like an unmatched reply; anything
		// else is a transport problem that aborts the run.
		if errors.Is(err, booking.ErrSlotTaken) {
			logger.Warn("matched slot no longer free", "from", msg.Sender, "event_id", result.Offer.EventID)
			c.unmatched(ctx, msg, summary)
			return nil
		}
		return fmt.Errorf("scheduler: book slot: %w", err)
	}
	if err := c.ledger.Remove(ctx, msg.Sender); err != nil {
		return err
	}
	summary.Matched++
	c.metrics.ObserveMatch("matched")
	logger.Info("reply matched and booked", "from", msg.Sender, "event_id", result.Offer.EventID)
	return nil
}

// unmatched flags a reply nobody could act on. Any unmatched reply in the
// batch suppresses mark-processed for the entire run, so everything the
// engine saw stays visible until the coach answers by hand.
func (c *Coordinator) unmatched(ctx context.Context, msg *gmail.InboundMessage, summary *Summary) {
	summary.Unmatched++
	c.metrics.ObserveMatch("unmatched")
	c.operator.UnmatchedReply(ctx, msg.Sender, msg.Subject, msg.Body)
}

// isInquiry applies the keyword filter to a first-contact message. With no
// keywords configured every question qualifies.
func (c *Coordinator) isInquiry(msg *gmail.InboundMessage) bool {
	if len(c.cfg.Keywords) == 0 {
		return true
	}
	content := strings.ToLower(msg.Subject + "\n" + msg.Body)
	for _, kw := range c.cfg.Keywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// sendOffers answers the run's accepted inquiries with the offer list. In
// dry-run mode the replies are written to files instead and the ledger is
// left alone.
func (c *Coordinator) sendOffers(ctx context.Context, logger *logging.Logger, pending []pendingOffer, offers []slots.Offer, summary *Summary) error {
	if len(pending) == 0 {
		return nil
	}
	offerList, err := c.formatter.RenderList(offers)
	if err != nil {
		return fmt.Errorf("scheduler: render offers: %w", err)
	}

	for _, p := range pending {
		body, err := c.locale.RenderOfferBody(p.msg.SenderName, offerList)
		if err != nil {
			return fmt.Errorf("scheduler: render offer body: %w", err)
		}
		out := gmail.Outbound{
			To:       p.msg.Sender,
			Subject:  strings.TrimSpace(c.locale.OfferSubjectPrefix + " " + p.msg.Subject),
			Body:     body,
			ThreadID: p.msg.ThreadID,
		}

		if c.cfg.DryRun {
			if err := c.writePreparedReply(out); err != nil {
				return err
			}
			logger.Info("prepared reply written", "to", out.To)
			continue
		}

		if err := c.mail.Send(ctx, out); err != nil {
			return fmt.Errorf("scheduler: send offer: %w", err)
		}
		c.ledger.Append(p.msg.Sender, c.now())
		summary.OffersSent++
	}
	return nil
}

func (c *Coordinator) writePreparedReply(out gmail.Outbound) error {
	dir := c.cfg.PreparedRepliesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("scheduler: create prepared replies dir: %w", err)
	}
	path := filepath.Join(dir, out.To+".txt")
	content := fmt.Sprintf("To: %s\nSubject: %s\n\n%s\n", out.To, out.Subject, out.Body)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("scheduler: write prepared reply: %w", err)
	}
	return nil
}
