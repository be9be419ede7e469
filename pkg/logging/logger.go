package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger with the specified level
func New(level string) *Logger {
	return newWithWriter(level, os.Stdout)
}

// NewWithFile creates a logger that writes to stdout and to a per-day log
// file under dir (dir/2006-01-02.log). Runs are unattended cron jobs, so the
// file is the operator's trail between invocations.
func NewWithFile(level, dir string) (*Logger, error) {
	if dir == "" {
		return New(level), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return New(level), fmt.Errorf("logging: create log dir: %w", err)
	}
	path := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return New(level), fmt.Errorf("logging: open log file: %w", err)
	}
	return newWithWriter(level, io.MultiWriter(os.Stdout, f)), nil
}

func newWithWriter(level string, w io.Writer) *Logger {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(w, opts)
	logger := slog.New(handler)

	return &Logger{Logger: logger}
}

// With returns a logger carrying the given attributes on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}
