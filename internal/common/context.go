package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyCenterID  contextKey = "center_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithCenterID adds the center ID being processed to the context
func WithCenterID(ctx context.Context, centerID string) context.Context {
	return context.WithValue(ctx, ContextKeyCenterID, centerID)
}

// CenterIDFromContext extracts the center ID from context
func CenterIDFromContext(ctx context.Context) string {
	if centerID, ok := ctx.Value(ContextKeyCenterID).(string); ok {
		return centerID
	}
	return ""
}
