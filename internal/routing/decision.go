package routing

// Decision is the provider-agnostic output of the router.
//
// It must contain *only* information required to bridge the call (e.g. the
// TwiML Dial target). No provider-specific fields belong here.
type Decision struct {
	Phone string `json:"phone"`

	Action    Action `json:"action"`
	ConnectTo string `json:"connect_to,omitempty"`

	// Reason is optional and intended for internal logs.
	Reason string `json:"reason,omitempty"`
}

type Action string

const (
	ActionReject  Action = "reject"
	ActionConnect Action = "connect"
)
