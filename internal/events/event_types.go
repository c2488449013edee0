package events

import (
	"time"

	"github.com/spec-kit/kakao-auth/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRefreshIssued         EventType = "refresh_issued"
	EventRefreshRotated        EventType = "refresh_rotated"
	EventRefreshRevoked        EventType = "refresh_revoked"
	EventRefreshReplayDetected EventType = "refresh_replay_detected"
	EventSignupTicketIssued    EventType = "signup_ticket_issued"
	EventSignupCompleted       EventType = "signup_completed"
)

// Subject identifies the account an event concerns. UserID is zero before signup.
type Subject struct {
	UserID       int64               `json:"user_id,omitempty"`
	Role         domain.Role         `json:"role"`
	ProviderType domain.ProviderType `json:"provider_type,omitempty"`
}

// Event represents a session lifecycle event emitted by services.
// Payloads never carry token, ticket or PIN values.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   Subject     `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// SignupCompletedPayload payload.
type SignupCompletedPayload struct {
	Created bool `json:"created"`
}

// RefreshIssuedPayload payload.
type RefreshIssuedPayload struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}
