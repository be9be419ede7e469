// Package classify decides what kind of correspondence an inbound message
// is, based solely on the sender's ledger state and the message receipt
// time. It never inspects the message body.
package classify

import (
	"time"

	"github.com/coachmail/coachmail/internal/ledger"
)

// Kind is the classification of an inbound message.
type Kind int

const (
	// Indeterminate means the sender has an outstanding offer but the
	// message predates it, so it cannot be the answer.
	Indeterminate Kind = iota
	// Question is a first contact: the sender has no outstanding offer.
	Question
	// Response arrived after an offer went out to the sender.
	Response
)

func (k Kind) String() string {
	switch k {
	case Question:
		return "question"
	case Response:
		return "response"
	default:
		return "indeterminate"
	}
}

// Classify labels a message from sender received at receipt. The ledger
// must already be loaded. When the sender holds several outstanding
// entries the earliest one decides, so a reply to any of them counts.
func Classify(l *ledger.Ledger, sender string, receipt time.Time) Kind {
	awaitingSince, ok := l.EarliestAwaiting(sender)
	if !ok {
		return Question
	}
	if receipt.After(awaitingSince) {
		return Response
	}
	return Indeterminate
}
