package infrastructure

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

// TraceIDContextKey holds the search trace ID in a context
const TraceIDContextKey contextKey = "trace_id"

// WithTraceID stores a search trace ID in ctx
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID returns the search trace ID of ctx. Inside an HTTP request
// without one, chi's request ID stands in.
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(TraceIDContextKey).(string); ok && id != "" {
		return id
	}
	return middleware.GetReqID(ctx)
}

// GenerateTraceID returns a random UUID v4
func GenerateTraceID() string {
	return uuid.NewString()
}

// EnsureTraceID returns ctx carrying a trace ID and that ID, generating one
// when ctx has none
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if id := GetTraceID(ctx); id != "" {
		return ctx, id
	}
	id := GenerateTraceID()
	return WithTraceID(ctx, id), id
}
