package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/coachmail/coachmail/pkg/logging"
)

// Operator sends alerts to the coach running the engine. A nil Operator or
// one without a recipient drops alerts silently, so callers never need to
// check configuration themselves.
type Operator struct {
	sender EmailSender
	to     string
	logger *logging.Logger
}

// NewOperator creates an Operator delivering to the given address.
func NewOperator(sender EmailSender, to string, logger *logging.Logger) *Operator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Operator{sender: sender, to: to, logger: logger}
}

func (o *Operator) enabled() bool {
	return o != nil && o.sender != nil && o.to != ""
}

// UnmatchedReply alerts that a reply to an offer could not be matched to
// any slot and needs a human answer.
func (o *Operator) UnmatchedReply(ctx context.Context, sender, subject, body string) {
	if !o.enabled() {
		return
	}
	msg := Message{
		To:      o.to,
		Subject: fmt.Sprintf("Unmatched reply from %s", sender),
		Body: fmt.Sprintf("A reply to your offer could not be matched to any slot.\n\n"+
			"From: %s\nSubject: %s\n\n%s\n\n"+
			"The message was left unread so it stays visible in the inbox.", sender, subject, body),
	}
	o.deliver(ctx, msg)
}

// LowAvailability alerts that the calendar offers fewer free slots than the
// configured floor.
func (o *Operator) LowAvailability(ctx context.Context, count, minimum int) {
	if !o.enabled() {
		return
	}
	msg := Message{
		To:      o.to,
		Subject: "Low slot availability",
		Body: fmt.Sprintf("Only %d free slots are on the calendar, below the configured minimum of %d.\n"+
			"Add more free slots so new inquiries keep getting offers.", count, minimum),
	}
	o.deliver(ctx, msg)
}

// RunFailed alerts that a run aborted.
func (o *Operator) RunFailed(ctx context.Context, runID string, at time.Time, runErr error) {
	if !o.enabled() {
		return
	}
	msg := Message{
		To:      o.to,
		Subject: "Correspondence run failed",
		Body:    fmt.Sprintf("Run %s failed at %s:\n\n%v", runID, at.Format(time.RFC3339), runErr),
	}
	o.deliver(ctx, msg)
}

func (o *Operator) deliver(ctx context.Context, msg Message) {
	if err := o.sender.Send(ctx, msg); err != nil {
		// Alerts are best effort; the run carries on.
		o.logger.Error("operator alert failed", "subject", msg.Subject, "error", err)
	}
}
