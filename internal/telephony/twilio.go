package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"outbound-dialer/internal/dispatch"
)

// statusEvents are the lifecycle callbacks requested for every call.
var statusEvents = []string{"initiated", "ringing", "answered", "completed"}

// callsAPI is the slice of the Twilio 2010 REST API the provider uses.
// *openapi.ApiService implements it.
type callsAPI interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
	FetchAccount(sid string) (*openapi.ApiV2010Account, error)
}

type TwilioOptions struct {
	AccountSID string
	AuthToken  string
	From       string
	// Region and Edge select a Twilio regional endpoint. Empty means the
	// global default.
	Region string
	Edge   string
	// PublicBaseURL is where the provider reaches our webhooks.
	PublicBaseURL    string
	MachineDetection string
	RingTimeout      int

	// HTTPClient replaces the SDK's default transport when set.
	HTTPClient *http.Client
}

// TwilioProvider places outbound calls through the Twilio REST API.
type TwilioProvider struct {
	opts TwilioOptions
	api  callsAPI
}

func NewTwilioProvider(opts TwilioOptions) (*TwilioProvider, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, errors.New("telephony: twilio credentials required")
	}
	if opts.PublicBaseURL == "" {
		return nil, errors.New("telephony: public base url required")
	}

	params := twilio.ClientParams{Username: opts.AccountSID, Password: opts.AuthToken}
	if opts.HTTPClient != nil {
		c := &twclient.Client{
			Credentials: twclient.NewCredentials(opts.AccountSID, opts.AuthToken),
			HTTPClient:  opts.HTTPClient,
		}
		c.SetAccountSid(opts.AccountSID)
		params.Client = c
	}
	rc := twilio.NewRestClientWithParams(params)
	if opts.Region != "" {
		rc.SetRegion(opts.Region)
	}
	if opts.Edge != "" {
		rc.SetEdge(opts.Edge)
	}
	return newTwilioProvider(opts, rc.Api), nil
}

func newTwilioProvider(opts TwilioOptions, api callsAPI) *TwilioProvider {
	return &TwilioProvider{opts: opts, api: api}
}

func (p *TwilioProvider) Name() string { return "twilio" }

// HealthCheck fetches the account resource, which verifies credentials.
func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.api.FetchAccount(p.opts.AccountSID); err != nil {
		return fmt.Errorf("telephony: twilio account: %w", err)
	}
	return nil
}

// PlaceCall creates an outbound call. The voice and status webhooks carry the
// per-call token so callbacks resolve to the contact without trusting To.
func (p *TwilioProvider) PlaceCall(ctx context.Context, r dispatch.Request) (dispatch.Result, error) {
	if r.To == "" {
		return dispatch.Result{}, errors.New("telephony: destination required")
	}
	if err := ctx.Err(); err != nil {
		return dispatch.Result{}, err
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(r.To)
	params.SetFrom(p.opts.From)
	params.SetUrl(CallbackURL(p.opts.PublicBaseURL, PathVoice, r.Token))
	params.SetMethod(http.MethodPost)
	params.SetStatusCallback(CallbackURL(p.opts.PublicBaseURL, PathStatus, r.Token))
	params.SetStatusCallbackMethod(http.MethodPost)
	params.SetStatusCallbackEvent(statusEvents)
	if p.opts.RingTimeout > 0 {
		params.SetTimeout(p.opts.RingTimeout)
	}
	if p.opts.MachineDetection != "" {
		params.SetMachineDetection(p.opts.MachineDetection)
	}

	call, err := p.api.CreateCall(params)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("telephony: twilio create call: %w", err)
	}
	if call == nil || call.Sid == nil || *call.Sid == "" {
		return dispatch.Result{}, errors.New("telephony: twilio returned no call sid")
	}
	return dispatch.Result{ProviderCallID: *call.Sid}, nil
}

// RestError unwraps the API error behind a failed provider call.
func RestError(err error) (*twclient.TwilioRestError, bool) {
	var te *twclient.TwilioRestError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
