// Package notify delivers operator alerts over email. The correspondence
// itself always goes through Gmail; this package only covers the messages
// the coach gets about the engine's own behavior.
package notify

import (
	"context"

	"github.com/coachmail/coachmail/pkg/logging"
)

// EmailSender abstracts the alert channel. Implementations can be swapped
// (SES, SendGrid, stub) without changing callers.
type EmailSender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one alert email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// StubSender logs instead of sending, for tests and disabled setups.
type StubSender struct {
	logger *logging.Logger
}

// NewStubSender creates a StubSender.
func NewStubSender(logger *logging.Logger) *StubSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSender{logger: logger}
}

func (s *StubSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("stub sender: would send alert", "to", msg.To, "subject", msg.Subject)
	return nil
}

var _ EmailSender = (*StubSender)(nil)
