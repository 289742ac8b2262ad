// Package requestctx carries request-scoped values across layers.
package requestctx

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
)

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}
