package goGuard

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches a request identifier to ctx. The Engine copies it
// into every audit event emitted while serving that request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the identifier set by [WithRequestID].
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
