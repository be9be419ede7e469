package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coachmail/coachmail/internal/timeparse"
	"github.com/coachmail/coachmail/pkg/logging"
)

// flushFormat is the canonical timestamp written on append. Loading still
// accepts the older formats via timeparse.
const flushFormat = "2006-01-02T15:04:05Z"

// FileStore persists the ledger as a line-oriented text file. Each row is
// two spaces, the address, a colon and a timestamp:
//
//	  customer@example.com: 2023-10-23T22:22:38Z
//
// Appends only ever add rows; Remove rewrites the file without the
// address's rows.
type FileStore struct {
	path   string
	loc    *time.Location
	logger *logging.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore at path. Timestamps without zone
// information are interpreted in loc.
func NewFileStore(path string, loc *time.Location, logger *logging.Logger) *FileStore {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FileStore{path: path, loc: loc, logger: logger}
}

// Load parses every row of the file. A missing file is an empty ledger.
// Rows with a broken shape are logged and skipped; a row whose timestamp
// cannot be parsed aborts the load with a *FormatError.
func (s *FileStore) Load(ctx context.Context) ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", s.path, err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		row := strings.TrimSpace(line)
		if row == "" {
			continue
		}
		// The address cannot contain a colon, so the first one is the
		// separator even when the timestamp holds more.
		addr, ts, ok := strings.Cut(row, ":")
		addr = strings.TrimSpace(addr)
		ts = strings.TrimSpace(ts)
		if !ok || addr == "" || ts == "" {
			s.logger.Warn("skipping malformed ledger row", "row", row)
			continue
		}
		at, err := timeparse.Parse(ts, s.loc)
		if err != nil {
			return nil, &FormatError{Row: row, Err: err}
		}
		entries = append(entries, Entry{Address: addr, AwaitingSince: at})
	}
	return entries, nil
}

// Append adds one row per entry to the end of the file, creating the file
// and its directory if needed.
func (s *FileStore) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ledger: create dir for %s: %w", s.path, err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", s.path, err)
	}
	defer f.Close()

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "\n  %s: %s", e.Address, e.AwaitingSince.UTC().Format(flushFormat))
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("ledger: append to %s: %w", s.path, err)
	}
	return nil
}

// Remove rewrites the file keeping every row except those for address.
// Rows that do not parse as address rows are preserved untouched. A
// missing file is a no-op.
func (s *FileStore) Remove(ctx context.Context, address string) error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: read %s: %w", s.path, err)
	}

	lines := strings.Split(string(data), "\n")
	kept := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		addr, _, ok := strings.Cut(strings.TrimSpace(line), ":")
		if ok && strings.TrimSpace(addr) == address {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	if removed == 0 {
		return nil
	}
	if err := os.WriteFile(s.path, []byte(strings.Join(kept, "\n")), 0o644); err != nil {
		return fmt.Errorf("ledger: rewrite %s: %w", s.path, err)
	}
	return nil
}
