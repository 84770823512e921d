// Package logging sets up the process logger and the durable error log.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

// ParseLevel maps a level name to a slog level. Unknown names fall back to
// the given default.
func ParseLevel(levelStr string, fallback slog.Level) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

// NewLogger creates a structured JSON logger writing to w at the given level.
// A nil writer means stderr.
func NewLogger(levelStr string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: ParseLevel(levelStr, slog.LevelWarn),
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ErrorLog appends one JSON line per recorded failure to a size-rotated file.
type ErrorLog struct {
	rotator *rotator.Rotator
	logger  *slog.Logger
}

// OpenErrorLog opens (or creates) the error log at filename. Once the file
// grows past maxKB it is rolled, keeping maxRolls old files.
func OpenErrorLog(filename string, maxKB int64, maxRolls int) (*ErrorLog, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create error log directory: %w", err)
		}
	}
	r, err := rotator.New(filename, maxKB, false, maxRolls)
	if err != nil {
		return nil, fmt.Errorf("failed to create error log rotator: %w", err)
	}

	el := &ErrorLog{rotator: r}
	el.logger = slog.New(slog.NewJSONHandler(r, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Time(slog.TimeKey, a.Value.Time().UTC())
			}
			return a
		},
	}))
	return el, nil
}

// Record writes a failure with its distinguishing code. A nil ErrorLog is a
// no-op so callers need not check whether the log is enabled.
func (l *ErrorLog) Record(code int, msg string, err error) {
	if l == nil {
		return
	}
	attrs := []slog.Attr{slog.Int("code", code)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

// Close flushes and closes the underlying file.
func (l *ErrorLog) Close() error {
	if l == nil {
		return nil
	}
	return l.rotator.Close()
}
