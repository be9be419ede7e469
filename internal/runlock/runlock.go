// Package runlock guards against two engine instances processing the same
// account at once. One run per account is the core concurrency guarantee;
// the Redis lock enforces it across hosts.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coachmail/coachmail/pkg/logging"
)

// ErrHeld means another instance currently holds the lock.
var ErrHeld = errors.New("runlock: already held by another instance")

// Lock is a single-holder advisory lock keyed by account.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	logger *logging.Logger
}

// New creates a Lock for the account. token must be unique per instance;
// the run ID serves well.
func New(client *redis.Client, account, token string, ttl time.Duration, logger *logging.Logger) *Lock {
	if logger == nil {
		logger = logging.Default()
	}
	return &Lock{
		client: client,
		key:    "coachmail:runlock:" + account,
		token:  token,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire takes the lock or returns ErrHeld. The TTL bounds how long a
// crashed instance can block the account.
func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("runlock: acquire %s: %w", l.key, err)
	}
	if !ok {
		return ErrHeld
	}
	l.logger.Debug("run lock acquired", "key", l.key)
	return nil
}

// releaseScript deletes the key only when this instance still owns it, so
// an expired lock taken over by another instance is never released from
// here.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release gives the lock back.
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("runlock: release %s: %w", l.key, err)
	}
	if n == 0 {
		l.logger.Warn("run lock was not ours to release", "key", l.key)
	}
	return nil
}
