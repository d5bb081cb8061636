package dispatch

import (
	"context"
	"errors"
)

// ErrDialerNotConfigured is returned when a dispatcher has no Dialer.
var ErrDialerNotConfigured = errors.New("dispatch: dialer not configured")

// Dialer issues the "place call" command to a telephony provider.
//
// Implementations build their own webhook URLs from Token so that every
// callback for the call can be routed back to the contact.
type Dialer interface {
	PlaceCall(ctx context.Context, req Request) (Result, error)
}

type Request struct {
	// To is the canonical destination phone.
	To string
	// Token is the routable per-call client token.
	Token string

	RunID    string
	Name     string
	ClientID string
}

type Result struct {
	// ProviderCallID is the provider's identifier for the created call.
	ProviderCallID string
}

// DialerFunc adapts a function into a Dialer.
type DialerFunc func(ctx context.Context, req Request) (Result, error)

func (f DialerFunc) PlaceCall(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
