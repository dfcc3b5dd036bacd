package houndgo

import (
	"io"
	"log/slog"
	"math"
	"os"
)

// Logger wraps slog.Logger with the field names used across the index
// packages, so log lines from a manager, its indexes, and its watchers
// share a consistent vocabulary.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps the given handler. A nil handler falls back to text
// output on stderr at LevelInfo.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = newTextHandler(slog.LevelInfo)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger emitting JSON lines to stderr at the
// given minimum level.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger emitting human-readable text to stderr
// at the given minimum level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(newTextHandler(level))}
}

// NoopLogger creates a Logger that discards everything. It is the
// manager default.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))}
}

// WithIndex tags subsequent records with the index name.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{Logger: l.Logger.With("index", name)}
}

// WithRoot tags subsequent records with the managed root directory.
func (l *Logger) WithRoot(root string) *Logger {
	return &Logger{Logger: l.Logger.With("root", root)}
}

func newTextHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
}
