// Package retry provides a small, explicit retry policy for the Google API
// collaborators. The policy is a first-class value passed in at construction
// rather than a cross-cutting wrapper.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/coachmail/coachmail/pkg/logging"
)

// Policy describes how a transport call is retried. The delay for attempt n
// (zero-based) is BaseDelay << n, matching bounded exponential backoff of
// 2^attempt when BaseDelay is one second.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
	Logger      *logging.Logger
	// OnRetry, when set, is invoked once per reattempt with the operation
	// name. Used to feed retry counters.
	OnRetry func(op string)
}

// Default returns the standard transport policy: 3 attempts, 1s base delay,
// retrying only transient Google API failures.
func Default(logger *logging.Logger) Policy {
	if logger == nil {
		logger = logging.Default()
	}
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Retryable:   TransientGoogleAPI,
		Logger:      logger,
	}
}

// Do runs fn under the policy. Non-retryable errors propagate immediately;
// retryable ones are reattempted with backoff until attempts are exhausted.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}
		if p.Logger != nil {
			p.Logger.Warn("transient transport error, retrying",
				"op", op,
				"attempt", attempt+1,
				"error", lastErr,
			)
		}
		if p.OnRetry != nil {
			p.OnRetry(op)
		}
		if err := p.sleep(ctx, attempt); err != nil {
			return err
		}
	}
	return lastErr
}

// DoValue is Do for calls that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op string, fn func() (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, op, func() error {
		var callErr error
		result, callErr = fn()
		return callErr
	})
	return result, err
}

func (p Policy) sleep(ctx context.Context, attempt int) error {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base << attempt
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TransientGoogleAPI reports whether err is worth retrying: a 429/500/503
// from the API, or a network timeout. A 403 or any other status is
// propagated immediately; retrying a credentials problem only delays the
// operator diagnostic.
func TransientGoogleAPI(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 503:
			return true
		default:
			return false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
