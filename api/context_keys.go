package api

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a private type to prevent context key collisions across packages.
type contextKey string

const (
	// ContextKeyRequestID stores the unique request identifier (string)
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyApplication stores the serving Application for the lifetime of one request
	ContextKeyApplication contextKey = "application"

	// ContextKeySubject stores the authenticated subject (string), set by auth middleware
	ContextKeySubject contextKey = "subject"
)

// Application is the view of the running server that handlers may resolve from
// a request context instead of receiving it as a parameter.
type Application interface {
	Name() string
	Logger() *zap.SugaredLogger
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyRequestID).(string)
	return id, ok && id != ""
}

// GetRequestIDOrDefault returns the request ID or "unknown".
func GetRequestIDOrDefault(ctx context.Context) string {
	if id, ok := GetRequestID(ctx); ok {
		return id
	}
	return "unknown"
}

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithApplication returns a context carrying app.
func WithApplication(ctx context.Context, app Application) context.Context {
	return context.WithValue(ctx, ContextKeyApplication, app)
}

// ApplicationFrom resolves the Application attached to ctx.
func ApplicationFrom(ctx context.Context) (Application, bool) {
	app, ok := ctx.Value(ContextKeyApplication).(Application)
	return app, ok
}

// WithSubject returns a context carrying the authenticated subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}

// GetSubject extracts the authenticated subject from the context.
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(ContextKeySubject).(string)
	return subject, ok && subject != ""
}
