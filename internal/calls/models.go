package calls

import (
	"strings"
	"time"
)

// Call is one outbound dial attempt for a contact within a campaign run.
//
// CallID is the routable token handed to the provider in webhook URLs.
// ProviderCallID (Twilio CallSid) is filled once the provider accepts the
// command and stays empty for dispatches that failed.
type Call struct {
	CallID         string `json:"call_id" db:"call_id"`
	RunID          string `json:"run_id" db:"run_id"`
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	// To is the canonical destination phone.
	To   string `json:"to" db:"to"`
	From string `json:"from" db:"from"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is the provider-reported duration on completion.
	DurationSeconds int `json:"duration" db:"duration"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CallStatus is the provider call lifecycle vocabulary (Twilio CallStatus).
type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusBusy       CallStatus = "busy"
	CallStatusCanceled   CallStatus = "canceled"
)

// ParseStatus maps a raw provider status onto the vocabulary.
// Underscore spellings ("no_answer", "in_progress") are accepted as aliases.
// Unknown values return ("", false).
func ParseStatus(raw string) (CallStatus, bool) {
	s := CallStatus(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-"))
	switch s {
	case CallStatusQueued, CallStatusInitiated, CallStatusRinging, CallStatusInProgress,
		CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy, CallStatusCanceled:
		return s, true
	case "cancelled":
		return CallStatusCanceled, true
	default:
		return "", false
	}
}

// Terminal reports whether no further lifecycle events follow this status.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy, CallStatusCanceled:
		return true
	default:
		return false
	}
}

// IsMachine reports whether an AnsweredBy value from answering machine
// detection means a machine or fax picked up.
func IsMachine(answeredBy string) bool {
	a := strings.ToLower(strings.TrimSpace(answeredBy))
	return strings.HasPrefix(a, "machine") || a == "fax"
}
