package events

import (
	"context"
	"os"
)

type contextKey int

const (
	loggerKey contextKey = iota
	entryIDKey
)

var defaultLogger = NewTestLogger(InfoLevel, "text", os.Stderr)

// FromContext extracts the logger from ctx, falling back to a plain
// stderr logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithEntryID tags the context (and its logger) with a library entry
// id, so every log line from one add/open pipeline carries it.
func WithEntryID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("entry_id", id)
	ctx = context.WithValue(ctx, entryIDKey, id)
	return WithLogger(ctx, logger)
}

// GetEntryID retrieves the entry id from the context.
func GetEntryID(ctx context.Context) string {
	if id, ok := ctx.Value(entryIDKey).(string); ok {
		return id
	}
	return ""
}
