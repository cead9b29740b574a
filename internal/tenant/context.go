package tenant

import (
	"context"
	"errors"
)

// Key for tenant ID in context
type contextKey string

const (
	businessIDKey contextKey = "businessID"
	requestIDKey  contextKey = "requestID"
	actorIDKey    contextKey = "actorID"
)

// ErrBusinessIDNotFound is returned when no tenant ID is found in context
var ErrBusinessIDNotFound = errors.New("business ID not found in context")

// WithBusinessID adds a tenant ID to the context
func WithBusinessID(ctx context.Context, businessID string) context.Context {
	return context.WithValue(ctx, businessIDKey, businessID)
}

// FromContext extracts the tenant ID from the context
func FromContext(ctx context.Context) (string, error) {
	businessID, ok := ctx.Value(businessIDKey).(string)
	if !ok || businessID == "" {
		return "", ErrBusinessIDNotFound
	}
	return businessID, nil
}

// MustFromContext extracts the tenant ID from the context or panics
func MustFromContext(ctx context.Context) string {
	businessID, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return businessID
}

// ErrNoRequestIDInContext is returned when no request ID is found in context
var ErrNoRequestIDInContext = errors.New("no request ID found in context")

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FromRequestIDContext extracts the request ID from the context
func FromRequestIDContext(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}

// WithActorID records the user performing the current operation. Audit rows
// pick it up when the caller does not pass an explicit actor.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

// ActorFromContext extracts the acting user ID from the context, if any.
func ActorFromContext(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(actorIDKey).(string)
	return actorID, ok && actorID != ""
}
