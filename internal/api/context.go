package api

import "context"

type contextKey string

const requestIDContextKey contextKey = "request_id"

// RequestIDFromContext returns the request ID set by the server, or "".
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestIDContextKey).(string)
	return s
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}
