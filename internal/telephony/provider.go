package telephony

import (
	"context"
	"net/url"
	"strings"

	"outbound-dialer/internal/dispatch"
	"outbound-dialer/internal/phone"
)

// TelephonyProvider is the provider-agnostic interface the dialer uses.
//
// Rules:
// - No provider API calls outside telephony adapters.
// - Keep request/response types provider-agnostic (dispatch.Request/Result).
type TelephonyProvider interface {
	Name() string
	HealthCheck(ctx context.Context) error
	dispatch.Dialer
}

// Webhook paths the provider calls back on. Each carries the per-call token
// in the "t" query parameter.
const (
	PathVoice  = "/webhooks/twilio/voice"
	PathGather = "/webhooks/twilio/gather"
	PathStatus = "/webhooks/twilio/status"

	queryToken = "t"
	queryPhone = "phone"
)

// CallbackURL builds an absolute webhook URL for a call token.
func CallbackURL(publicBase, path, token string) string {
	u := strings.TrimRight(publicBase, "/") + path
	if token == "" {
		return u
	}
	return u + "?" + url.Values{queryToken: {token}}.Encode()
}

// GatherURL is the menu-response action for a contact. It carries the
// canonical phone so the response resolves even without a token.
func GatherURL(publicBase string, p phone.Canonical, token string) string {
	q := url.Values{queryPhone: {p}}
	if token != "" {
		q.Set(queryToken, token)
	}
	return strings.TrimRight(publicBase, "/") + PathGather + "?" + q.Encode()
}
