package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxQuerier is the slice of pgxpool.Pool the store needs. pgxmock
// implements it for tests.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore persists the ledger in the correspondence_entries table. Row
// order follows the serial primary key, so Load returns entries in insert
// order like the file store does.
type PGStore struct {
	db  PgxQuerier
	loc *time.Location
}

var _ Store = (*PGStore)(nil)

// NewPGStore creates a PGStore over an open pool.
func NewPGStore(db PgxQuerier, loc *time.Location) *PGStore {
	if loc == nil {
		loc = time.UTC
	}
	return &PGStore{db: db, loc: loc}
}

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	return pool, nil
}

func (s *PGStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT address, awaiting_since FROM correspondence_entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Address, &e.AwaitingSince); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		e.AwaitingSince = e.AwaitingSince.In(s.loc)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate entries: %w", err)
	}
	return entries, nil
}

func (s *PGStore) Append(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		_, err := s.db.Exec(ctx,
			`INSERT INTO correspondence_entries (address, awaiting_since) VALUES ($1, $2)`,
			e.Address, e.AwaitingSince.UTC())
		if err != nil {
			return fmt.Errorf("ledger: insert entry for %s: %w", e.Address, err)
		}
	}
	return nil
}

func (s *PGStore) Remove(ctx context.Context, address string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM correspondence_entries WHERE address = $1`, address)
	if err != nil {
		return fmt.Errorf("ledger: delete entries for %s: %w", address, err)
	}
	return nil
}
