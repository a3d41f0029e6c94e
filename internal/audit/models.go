package audit

import "time"

// Event is an append-only record of an identity or invitation change made by this client.
// Events are never updated or deleted. Credentials never appear in an event.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	UserID       string `json:"user_id,omitempty"`
	Email        string `json:"email,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	InvitationID string `json:"invitation_id,omitempty"`

	// Message is a short human-readable description.
	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventSessionEstablished EventType = "session_established"
	EventSessionEnded       EventType = "session_ended"
	EventSessionExpired     EventType = "session_expired"
	EventInvitationAccepted EventType = "invitation_accepted"
	EventInvitationRejected EventType = "invitation_rejected"
)
