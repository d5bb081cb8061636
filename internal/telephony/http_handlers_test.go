package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"outbound-dialer/internal/campaign"
	"outbound-dialer/internal/contacts"
	"outbound-dialer/internal/dispatch"
	"outbound-dialer/internal/outcome"
	"outbound-dialer/internal/phone"
	"outbound-dialer/internal/prompt"
	"outbound-dialer/internal/reporting"
)

type recordingDialer struct {
	mu   sync.Mutex
	reqs []dispatch.Request
}

func (d *recordingDialer) PlaceCall(ctx context.Context, r dispatch.Request) (dispatch.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, r)
	return dispatch.Result{ProviderCallID: "CA" + r.Token}, nil
}

func (d *recordingDialer) last() dispatch.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reqs[len(d.reqs)-1]
}

type oneAgent struct{}

func (oneAgent) PickAgent(ctx context.Context, p phone.Canonical) (string, bool) {
	return "+15559990000", true
}

func newWebhookRouter(t *testing.T) (*gin.Engine, *campaign.Manager, *outcome.Store, *recordingDialer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	const base = "https://dialer.example"
	dialer := &recordingDialer{}
	store := outcome.NewStore(outcome.NewMemoryRepo())
	m := campaign.NewManager(campaign.ManagerConfig{
		Store:    store,
		Dialer:   dialer,
		Reporter: reporting.NewGenerator(t.TempDir()),
		From:     "+15550009999",
	})
	eng := campaign.NewEngine(m, store, m.Ledger(), nil, oneAgent{}, func(p phone.Canonical, token string) string {
		return GatherURL(base, p, token)
	})
	h := TwilioWebhookHandler{Engine: eng, Renderer: NewRenderer(prompt.Default(), nil)}

	r := gin.New()
	r.POST(PathVoice, h.HandleVoice)
	r.POST(PathGather, h.HandleGather)
	r.POST(PathStatus, h.HandleStatus)
	return r, m, store, dialer
}

func post(r *gin.Engine, target string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookFlow_TransferThenCompleted(t *testing.T) {
	r, m, store, dialer := newWebhookRouter(t)
	ctx := context.Background()

	if _, err := m.Upload(ctx, []contacts.Contact{{ClientID: "C1", Name: "Alice", PhoneRaw: "+15550000001"}}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, _, err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	call := dialer.last()

	w := post(r, CallbackURL("", PathVoice, call.Token), url.Values{"CallSid": {"CA1"}, "To": {call.To}})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Gather") {
		t.Fatalf("expected gather, got %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "application/xml") {
		t.Fatalf("expected xml content type")
	}

	w = post(r, PathGather+"?phone=%2B15550000001&t="+call.Token, url.Values{"CallSid": {"CA1"}, "Digits": {"1"}})
	if !strings.Contains(w.Body.String(), "<Number>+15559990000</Number>") {
		t.Fatalf("expected dial to agent, got %s", w.Body.String())
	}

	w = post(r, CallbackURL("", PathStatus, call.Token), url.Values{"CallSid": {"CA1"}, "To": {call.To}, "CallStatus": {"completed"}, "CallDuration": {"45"}})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	o, ok, err := store.Get(ctx, "+15550000001")
	if err != nil || !ok || o.Result != outcome.KindTransferred {
		t.Fatalf("expected transfer kept, got %+v %v %v", o, ok, err)
	}
	if p := m.Progress(); p.Completed != 1 || p.Running {
		t.Fatalf("unexpected progress: %+v", p)
	}
}

func TestWebhookFlow_UnknownContactGetsFallback(t *testing.T) {
	r, _, _, _ := newWebhookRouter(t)
	w := post(r, PathVoice, url.Values{"CallSid": {"CA9"}, "To": {"+15558888888"}})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), prompt.Default().Fallback) {
		t.Fatalf("expected fallback, got %d %s", w.Code, w.Body.String())
	}
}
