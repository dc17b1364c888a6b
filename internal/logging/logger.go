// Package logging configures the process logger and carries run IDs
// through contexts.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const runIDKey contextKey = "run_id"

// Format selects the handler used by Setup.
type Format int

const (
	// FormatText writes key=value lines, used by CLI commands.
	FormatText Format = iota
	// FormatJSON writes one JSON object per line, used by the server.
	FormatJSON
)

// ParseLevel converts a level name to a slog.Level. Unknown names map
// to Info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w.
func New(w io.Writer, format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup builds a logger and installs it as the slog default.
func Setup(w io.Writer, format Format, level string) *slog.Logger {
	logger := New(w, format, ParseLevel(level))
	slog.SetDefault(logger)
	return logger
}

// NewRunID returns a fresh identifier for a pipeline run or request.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID returns a context carrying id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunID returns the run ID stored in ctx, or "".
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns logger annotated with the run ID from ctx. A nil
// logger means slog.Default().
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RunID(ctx); id != "" {
		return logger.With("run_id", id)
	}
	return logger
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
