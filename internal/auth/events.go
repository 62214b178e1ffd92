package auth

import (
	"context"
	"errors"
	"time"
)

// EventType classifies a security event.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventLoginThrottled EventType = "login_throttled"
	EventLogout         EventType = "logout"
	EventTokenRejected  EventType = "token_rejected"
	EventAccessDenied   EventType = "access_denied"
	EventRegistered     EventType = "registered"
)

// Event describes one authentication or authorisation outcome.
// It never carries secrets or token material.
type Event struct {
	Type     EventType
	UserID   string
	Username string
	Role     Role
	// Reason is a short machine-readable cause, e.g. "token_expired" or "role".
	Reason    string
	Operation Operation
	At        time.Time
}

// EventRecorder receives security events. Implementations must not block.
type EventRecorder interface {
	RecordAuthEvent(ctx context.Context, ev Event)
}

// Recorders fans an event out to several recorders.
type Recorders []EventRecorder

// RecordAuthEvent implements EventRecorder.
func (rs Recorders) RecordAuthEvent(ctx context.Context, ev Event) {
	for _, r := range rs {
		if r != nil {
			r.RecordAuthEvent(ctx, ev)
		}
	}
}

// DenyRecorder turns enforcer denials into access_denied events for rec.
func DenyRecorder(rec EventRecorder, now Clock) DenyFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, p *Principal, op Operation, reason DenyReason) {
		rec.RecordAuthEvent(ctx, Event{
			Type:      EventAccessDenied,
			UserID:    p.UserID,
			Username:  p.Username,
			Role:      p.Role,
			Reason:    string(reason),
			Operation: op,
			At:        now(),
		})
	}
}

// RejectReason returns the Reason string for a token validation error.
func RejectReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMalformedToken):
		return "token_malformed"
	default:
		return "unauthenticated"
	}
}
