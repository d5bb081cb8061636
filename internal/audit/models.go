package audit

import "time"

// Event is an immutable, append-only audit log record of an operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block campaign flows on audit failures.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated operator causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress is the resolved client IP.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	RunID      string `json:"run_id,omitempty" db:"run_id"`
	Phone      string `json:"phone,omitempty" db:"phone"`
	OverrideID string `json:"override_id,omitempty" db:"override_id"`
	CallSid    string `json:"call_sid,omitempty" db:"call_sid"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeContactsUploaded EventType = "contacts_uploaded"
	EventTypeCampaignStarted  EventType = "campaign_started"
	EventTypeCampaignStopped  EventType = "campaign_stopped"
	EventTypeReportGenerated  EventType = "report_generated"
	EventTypeTransferOverride EventType = "transfer_override"
	EventTypeOverrideApplied  EventType = "transfer_override_applied"
)
