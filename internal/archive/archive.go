// Package archive keeps a plain-text record of the inquiries a run
// answered, one file per day, optionally mirrored to S3.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/coachmail/coachmail/pkg/logging"
)

const separator = "=================================================="

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Record is one archived message.
type Record struct {
	From    string
	Subject string
	Receipt time.Time
	Body    string
}

// FileArchive writes daily archive files under dir. A rerun on the same
// day rewrites the day's file with the latest batch, so the file always
// reflects the most recent complete run.
type FileArchive struct {
	dir    string
	mirror *Mirror
	logger *logging.Logger
}

// New creates a FileArchive. mirror may be nil.
func New(dir string, mirror *Mirror, logger *logging.Logger) *FileArchive {
	if logger == nil {
		logger = logging.Default()
	}
	return &FileArchive{dir: dir, mirror: mirror, logger: logger}
}

// WriteDaily renders the records into the archive file for day and returns
// its path.
func (a *FileArchive) WriteDaily(ctx context.Context, day time.Time, records []Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", a.dir, err)
	}

	path := filepath.Join(a.dir, day.Format("2006-01-02")+".txt")
	content := render(records)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("archive: write %s: %w", path, err)
	}
	a.logger.Info("archived messages", "path", path, "count", len(records))

	if a.mirror.Enabled() {
		if err := a.mirror.Put(ctx, filepath.Base(path), content); err != nil {
			// The local file is the source of truth; a failed mirror is
			// logged, not fatal.
			a.logger.Error("archive mirror failed", "path", path, "error", err)
		}
	}
	return path, nil
}

func render(records []Record) string {
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "From: %s\n", r.From)
		fmt.Fprintf(&b, "Subject: %s\n", r.Subject)
		fmt.Fprintf(&b, "Date: %s\n\n", r.Receipt.Format("2006-01-02 15:04:05"))
		b.WriteString(cleanBody(r.Body))
		b.WriteString("\n" + separator + "\n")
	}
	return b.String()
}

// cleanBody trims the body and collapses runs of blank lines so quoted
// HTML conversions do not bloat the archive.
func cleanBody(body string) string {
	return strings.TrimSpace(blankRuns.ReplaceAllString(body, "\n\n"))
}
