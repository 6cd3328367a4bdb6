package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	loggerKey
)

// WithRequestIDCtx returns a context carrying a request id.
func WithRequestIDCtx(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// NewRequestIDCtx returns a context carrying a fresh random request id.
func NewRequestIDCtx(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return WithRequestIDCtx(ctx, id), id
}

// RequestIDFromCtx returns the request id in ctx, or "".
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLoggerCtx returns a context carrying l.
func WithLoggerCtx(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromCtx returns the logger in ctx, falling back to base and then to the
// global logger, tagged with the context's request id when present.
func FromCtx(ctx context.Context, base *Logger) *Logger {
	l, _ := ctx.Value(loggerKey).(*Logger)
	if l == nil {
		l = base
	}
	if l == nil {
		l = Global()
	}
	if id := RequestIDFromCtx(ctx); id != "" && id != l.requestID {
		l = l.WithRequestID(id)
	}
	return l
}
