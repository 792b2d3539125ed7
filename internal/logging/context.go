package logging

import (
	"context"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey int

const (
	sessionIDKey contextKey = iota
	loggerKey
)

// WithSessionIDCtx returns a new context carrying a write session ID.
func WithSessionIDCtx(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromCtx extracts the write session ID from the context.
func SessionIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithLoggerCtx returns a new context with the logger attached.
func WithLoggerCtx(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromCtx returns the logger attached to ctx, or the global logger. The
// returned logger is tagged with the context's session ID, if any.
func FromCtx(ctx context.Context) *Logger {
	l, ok := ctx.Value(loggerKey).(*Logger)
	if !ok || l == nil {
		l = Global()
	}
	if id := SessionIDFromCtx(ctx); id != "" {
		l = l.WithSessionID(id)
	}
	return l
}
