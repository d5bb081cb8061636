package outcome

import (
	"time"

	"outbound-dialer/internal/phone"
)

// Kind is the terminal result recorded for a contact.
type Kind string

const (
	KindNoAnswer           Kind = "no_answer"
	KindBusy               Kind = "busy"
	KindFailed             Kind = "failed"
	KindCanceled           Kind = "canceled"
	KindAnsweredNoTransfer Kind = "answered_no_transfer"
	KindAnsweredNoAction   Kind = "answered_no_action"
	KindTransferred        Kind = "successfully_transferred"
	KindLeftVoicemail      Kind = "left_voicemail"
)

// Kinds lists every valid Kind in report order.
var Kinds = []Kind{
	KindTransferred,
	KindLeftVoicemail,
	KindAnsweredNoTransfer,
	KindAnsweredNoAction,
	KindNoAnswer,
	KindBusy,
	KindFailed,
	KindCanceled,
}

// LabelNoResult is shown for contacts that never got a terminal outcome.
const LabelNoResult = "No result yet"

func (k Kind) Valid() bool {
	switch k {
	case KindNoAnswer, KindBusy, KindFailed, KindCanceled,
		KindAnsweredNoTransfer, KindAnsweredNoAction, KindTransferred, KindLeftVoicemail:
		return true
	default:
		return false
	}
}

// Label is the human-readable result used in reports.
func (k Kind) Label() string {
	switch k {
	case KindNoAnswer:
		return "No answer"
	case KindBusy:
		return "Busy"
	case KindFailed:
		return "Failed"
	case KindCanceled:
		return "Canceled"
	case KindAnsweredNoTransfer:
		return "Answered, no transfer"
	case KindAnsweredNoAction:
		return "Answered, no action"
	case KindTransferred:
		return "Transferred to human"
	case KindLeftVoicemail:
		return "Left voicemail"
	default:
		return LabelNoResult
	}
}

// Precedence ranks kinds. A stored outcome is replaced only by a strictly
// higher rank; equal ranks keep the existing record.
func (k Kind) Precedence() int {
	switch k {
	case KindTransferred:
		return 2
	case KindLeftVoicemail:
		return 1
	default:
		return 0
	}
}

// Supersedes reports whether next may overwrite prev.
func Supersedes(next, prev Kind) bool {
	return next.Precedence() > prev.Precedence()
}

// Outcome is the last accepted result for a canonical phone.
type Outcome struct {
	Phone           phone.Canonical `json:"phone"`
	Name            string          `json:"name"`
	Result          Kind            `json:"result"`
	DurationSeconds int             `json:"duration_seconds"`
	Timestamp       time.Time       `json:"timestamp"`
}
