package routing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"outbound-dialer/internal/phone"
)

var ErrInvalidAgentLine = errors.New("routing: invalid agent line")

// WeightedDestination is a human-agent line a transfer can be bridged to.
type WeightedDestination struct {
	// TargetURI is a provider-agnostic dial target.
	// Examples:
	// - sip:agent-123@pbx.example.com
	// - +15551234567
	TargetURI string `json:"target_uri"`

	// Weight must be > 0.
	Weight int `json:"weight"`
}

// ParseAgentLines parses "target[:weight],..." (weight defaults to 1).
// Phone targets are normalized; sip: URIs are kept as given, so a SIP URI
// that carries a port must spell out the weight.
func ParseAgentLines(raw string) ([]WeightedDestination, error) {
	var out []WeightedDestination
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		target, weight := part, 1
		if i := strings.LastIndex(part, ":"); i > 0 {
			if w, err := strconv.Atoi(strings.TrimSpace(part[i+1:])); err == nil {
				target, weight = strings.TrimSpace(part[:i]), w
			}
		}
		if weight <= 0 {
			return nil, fmt.Errorf("%w: %q weight must be positive", ErrInvalidAgentLine, part)
		}
		if !strings.HasPrefix(strings.ToLower(target), "sip:") {
			p := phone.Normalize(target)
			if p == "" {
				return nil, fmt.Errorf("%w: %q", ErrInvalidAgentLine, part)
			}
			target = p
		}
		out = append(out, WeightedDestination{TargetURI: target, Weight: weight})
	}
	return out, nil
}
