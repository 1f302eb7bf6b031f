package contextutil

import "context"

type contextKey string

const TraceIDKey contextKey = "traceID"

// TraceIDFromContext returns the request trace id, or a placeholder outside a request.
func TraceIDFromContext(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return "unknown-trace-id"
	}
	return traceID
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}
