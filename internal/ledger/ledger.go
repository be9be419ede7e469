// Package ledger tracks which correspondents are awaiting an offer reply.
// The ledger is an explicit multimap: one address may hold several
// outstanding entries, preserved in row order, and classification always
// compares against the earliest of them.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/coachmail/coachmail/pkg/logging"
)

// Entry is one outstanding correspondence: an address we replied to and the
// moment the reply went out.
type Entry struct {
	Address       string
	AwaitingSince time.Time
}

// FormatError reports a ledger row whose timestamp cannot be parsed by any
// accepted format. It aborts loading: a partially trusted ledger is worse
// than a hard stop.
type FormatError struct {
	Row string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("ledger: unparseable timestamp in row %q: %v", e.Row, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Store is the durable backing of the ledger. Implementations: the
// line-oriented file store and the Postgres store.
type Store interface {
	// Load returns every persisted entry in storage order.
	Load(ctx context.Context) ([]Entry, error)
	// Append durably adds entries. Existing rows are never rewritten.
	Append(ctx context.Context, entries []Entry) error
	// Remove drops every entry for the address, regardless of timestamp.
	// Removing an absent address is a no-op.
	Remove(ctx context.Context, address string) error
}

// Ledger is the in-memory view over a Store for one run.
type Ledger struct {
	store   Store
	logger  *logging.Logger
	entries []Entry
	pending []Entry
	loaded  bool
}

// New creates a Ledger over the given store.
func New(store Store, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// Load reads the store into memory on first call; later calls are no-ops so
// the run reads storage exactly once. Duplicate addresses are kept but
// flagged as an anomaly.
func (l *Ledger) Load(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	entries, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	l.entries = entries
	l.loaded = true

	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		seen[e.Address]++
	}
	for addr, n := range seen {
		if n > 1 {
			l.logger.Warn("duplicate ledger entries for address", "address", addr, "count", n)
		}
	}
	return nil
}

// Reload discards the in-memory view and reads storage again.
func (l *Ledger) Reload(ctx context.Context) error {
	l.loaded = false
	l.entries = nil
	return l.Load(ctx)
}

// Contains reports whether any entry exists for the address.
func (l *Ledger) Contains(address string) bool {
	for _, e := range l.entries {
		if e.Address == address {
			return true
		}
	}
	return false
}

// EarliestAwaiting returns the oldest awaiting-since timestamp for the
// address. The second return is false when the address has no entry.
func (l *Ledger) EarliestAwaiting(address string) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, e := range l.entries {
		if e.Address != address {
			continue
		}
		if !found || e.AwaitingSince.Before(earliest) {
			earliest = e.AwaitingSince
			found = true
		}
	}
	return earliest, found
}

// Append records a new outstanding entry in memory. It is durable only
// after Flush.
func (l *Ledger) Append(address string, awaitingSince time.Time) {
	if l.Contains(address) {
		l.logger.Warn("duplicate ledger entry appended", "address", address)
	}
	entry := Entry{Address: address, AwaitingSince: awaitingSince}
	l.entries = append(l.entries, entry)
	l.pending = append(l.pending, entry)
}

// Flush persists all entries appended since the last flush.
func (l *Ledger) Flush(ctx context.Context) error {
	if len(l.pending) == 0 {
		return nil
	}
	if err := l.store.Append(ctx, l.pending); err != nil {
		return fmt.Errorf("ledger: flush: %w", err)
	}
	l.pending = nil
	return nil
}

// Remove durably drops every entry for the address, then mirrors the
// removal in memory. Idempotent: an absent address is not an error.
func (l *Ledger) Remove(ctx context.Context, address string) error {
	if err := l.store.Remove(ctx, address); err != nil {
		return fmt.Errorf("ledger: remove %s: %w", address, err)
	}
	l.entries = dropAddress(l.entries, address)
	l.pending = dropAddress(l.pending, address)
	return nil
}

// Len returns the number of in-memory entries.
func (l *Ledger) Len() int { return len(l.entries) }

func dropAddress(entries []Entry, address string) []Entry {
	kept := entries[:0]
	for _, e := range entries {
		if e.Address != address {
			kept = append(kept, e)
		}
	}
	return kept
}
