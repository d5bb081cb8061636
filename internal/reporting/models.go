package reporting

import (
	"time"

	"outbound-dialer/internal/outcome"
)

// Row is one line of a campaign report: an uploaded contact joined with its
// recorded outcome by canonical phone. Rows keep upload order and the raw
// phone exactly as uploaded.
type Row struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`

	// Kind is empty when no outcome was recorded.
	Kind   outcome.Kind `json:"kind,omitempty"`
	Result string       `json:"result"`

	DurationSeconds int       `json:"duration_seconds"`
	Timestamp       time.Time `json:"timestamp,omitempty"`
}

// Summary aggregates outcome counts over a report.
type Summary struct {
	RunID string `json:"run_id,omitempty"`

	TotalContacts int `json:"total_contacts"`
	WithResult    int `json:"with_result"`
	NoResult      int `json:"no_result"`

	Transferred        int `json:"transferred"`
	LeftVoicemail      int `json:"left_voicemail"`
	AnsweredNoTransfer int `json:"answered_no_transfer"`
	AnsweredNoAction   int `json:"answered_no_action"`
	NoAnswer           int `json:"no_answer"`
	Busy               int `json:"busy"`
	Failed             int `json:"failed"`
	Canceled           int `json:"canceled"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// ConnectionRate is the share of contacts whose call was picked up
	// (by a person or a machine). TransferRate is the share transferred.
	ConnectionRate float64 `json:"connection_rate"`
	TransferRate   float64 `json:"transfer_rate"`
}

// Report is a written snapshot.
type Report struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Rows      []Row     `json:"-"`
	Summary   Summary   `json:"summary"`
}

// Snapshot describes a report file on disk.
type Snapshot struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
