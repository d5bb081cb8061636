package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/campaign"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/dispatch"
	"outbound-dialer/internal/httpapi"
	"outbound-dialer/internal/outcome"
	"outbound-dialer/internal/prompt"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/internal/routing"
	"outbound-dialer/internal/telephony"
	"outbound-dialer/internal/telephony/twiliotest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAuthToken  = "twilio-token"
	testPublicBase = "https://dialer.example.test"
)

func newTestServer(t *testing.T) (*gin.Engine, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	am, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	require.NoError(t, err)

	store := outcome.NewStore(outcome.NewMemoryRepo())
	reports := reporting.NewGenerator(t.TempDir())
	mgr := campaign.NewManager(campaign.ManagerConfig{
		Store: store,
		Dialer: dispatch.DialerFunc(func(ctx context.Context, req dispatch.Request) (dispatch.Result, error) {
			return dispatch.Result{ProviderCallID: "CA1"}, nil
		}),
		Reporter: reports,
	})
	router := routing.NewRouter(nil, nil)
	engine := campaign.NewEngine(mgr, store, mgr.Ledger(), nil, router, nil)

	r := gin.New()
	registerRoutes(r, routeDeps{
		Auth: am,
		API: httpapi.Handlers{
			Auth:      am,
			Campaign:  mgr,
			Reports:   reports,
			Audit:     audit.NewService(audit.NewMemoryRepo()),
			Overrides: routing.NewMemoryOverrideStore(),
			Router:    router,
		},
		Webhooks:    telephony.TwilioWebhookHandler{Engine: engine, Renderer: telephony.NewRenderer(prompt.Default(), nil)},
		WebhookAuth: []gin.HandlerFunc{telephony.ValidateSignature(testAuthToken, testPublicBase)},
	})
	return r, am
}

func bearer(t *testing.T, am *auth.Manager, role string) string {
	t.Helper()
	pair, err := am.IssuePair(time.Now(), "u-"+role, role)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func serveReq(r *gin.Engine, method, path, authz string) int {
	req := httptest.NewRequest(method, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutes_Health(t *testing.T) {
	r, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, serveReq(r, http.MethodGet, "/healthz", ""))
}

func TestRoutes_RoleGates(t *testing.T) {
	r, am := newTestServer(t)
	viewer := bearer(t, am, "viewer")
	operator := bearer(t, am, "operator")
	admin := bearer(t, am, "admin")

	cases := []struct {
		method, path, authz string
		want                int
	}{
		{http.MethodGet, "/v1/campaign/progress", "", http.StatusUnauthorized},
		{http.MethodGet, "/v1/campaign/progress", "Bearer nope", http.StatusUnauthorized},
		{http.MethodGet, "/v1/campaign/progress", viewer, http.StatusOK},
		{http.MethodGet, "/v1/campaign/reports", viewer, http.StatusOK},
		{http.MethodPost, "/v1/campaign/start", viewer, http.StatusForbidden},
		{http.MethodPost, "/v1/campaign/start", operator, http.StatusBadRequest},
		{http.MethodPost, "/v1/campaign/stop", operator, http.StatusConflict},
		{http.MethodGet, "/v1/admin/agents", operator, http.StatusForbidden},
		{http.MethodGet, "/v1/admin/agents", admin, http.StatusOK},
		{http.MethodPost, "/v1/campaign/start", admin, http.StatusBadRequest},
		{http.MethodGet, "/v1/me", viewer, http.StatusOK},
	}
	for _, tc := range cases {
		got := serveReq(r, tc.method, tc.path, tc.authz)
		assert.Equal(t, tc.want, got, "%s %s", tc.method, tc.path)
	}
}

func TestRoutes_WebhooksRequireSignature(t *testing.T) {
	r, _ := newTestServer(t)

	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"ringing"}, "To": {"+15550000001"}}
	path := telephony.PathStatus + "?t=tok"

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", twiliotest.Sign(testAuthToken, testPublicBase+path, form))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNormalizeCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"normalize", "+1 (555) 000-0001", "abc", "01712345678"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "+1 (555) 000-0001\t+15550000001\nabc\tunreachable\n01712345678\t+8801712345678\n", out.String())
}
