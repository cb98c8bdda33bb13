package api

import (
	"context"

	"casetrack/access"
	"casetrack/core"
)

// contextKey is a private type to prevent context key collisions across
// packages. Only this package can create keys, so authorization data in the
// request context cannot be spoofed from outside.
type contextKey string

const (
	// ContextKeyUser stores the authenticated user (*core.User)
	ContextKeyUser contextKey = "user"

	// ContextKeyChecker stores the request-scoped access checker (*access.Checker)
	ContextKeyChecker contextKey = "checker"

	// ContextKeyRequestID stores the unique request identifier (string)
	ContextKeyRequestID contextKey = "request_id"
)

// GetUser extracts the authenticated user from the context.
func GetUser(ctx context.Context) (*core.User, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*core.User)
	return user, ok
}

// GetChecker extracts the request-scoped access checker from the context.
func GetChecker(ctx context.Context) (*access.Checker, bool) {
	checker, ok := ctx.Value(ContextKeyChecker).(*access.Checker)
	return checker, ok
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// GetRequestIDOrDefault returns the request ID or "unknown" for logging.
func GetRequestIDOrDefault(ctx context.Context) string {
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		return requestID
	}
	return "unknown"
}

// WithUser creates a new context carrying the authenticated user.
func WithUser(ctx context.Context, user *core.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// WithChecker creates a new context carrying the access checker.
func WithChecker(ctx context.Context, checker *access.Checker) context.Context {
	return context.WithValue(ctx, ContextKeyChecker, checker)
}

// WithRequestID creates a new context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}
