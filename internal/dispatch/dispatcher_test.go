package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"outbound-dialer/internal/contacts"
	"outbound-dialer/internal/phone"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingDialer struct {
	mu    sync.Mutex
	calls []Request
	fail  map[string]error
}

func (r *recordingDialer) PlaceCall(ctx context.Context, req Request) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if err := r.fail[req.To]; err != nil {
		return Result{}, err
	}
	return Result{ProviderCallID: "CA" + req.Token}, nil
}

func (r *recordingDialer) placed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.To)
	}
	return out
}

func queue(phones ...string) []contacts.QueueItem {
	out := make([]contacts.QueueItem, 0, len(phones))
	for i, p := range phones {
		out = append(out, contacts.QueueItem{Phone: p, Name: "n", ClientID: string(rune('A' + i))})
	}
	return out
}

func TestAdvance_DispatchesHeadAndHoldsSlot(t *testing.T) {
	ctx := context.Background()
	dl := &recordingDialer{}
	d := NewDispatcher("run-1", "+15550000000", dl, nil)
	d.EnqueueAll(queue("+15550000001", "+15550000002"))

	require.True(t, d.Advance(ctx))
	assert.False(t, d.Advance(ctx), "second advance must not dial while a call is in flight")
	assert.Equal(t, []string{"+15550000001"}, dl.placed())

	c, ok := d.InFlight()
	require.True(t, ok)
	assert.Equal(t, "+15550000001", c.To)
	assert.Equal(t, "CA"+c.CallID, c.ProviderCallID)
	assert.Equal(t, 1, d.Pending())
}

func TestComplete_ReleasesOnlyMatchingPhone(t *testing.T) {
	ctx := context.Background()
	dl := &recordingDialer{}
	d := NewDispatcher("run-1", "", dl, nil)
	d.EnqueueAll(queue("+15550000001", "+15550000002"))
	require.True(t, d.Advance(ctx))

	assert.False(t, d.Complete(ctx, "+15559999999"))
	assert.Equal(t, []string{"+15550000001"}, dl.placed())

	assert.True(t, d.Complete(ctx, "+15550000001"))
	assert.Equal(t, []string{"+15550000001", "+15550000002"}, dl.placed())

	// A duplicate terminal event for the first phone must not release the second call.
	assert.False(t, d.Complete(ctx, "+15550000001"))
	c, ok := d.InFlight()
	require.True(t, ok)
	assert.Equal(t, "+15550000002", c.To)
}

func TestAdvance_FailedDispatchSkipsToNext(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("provider rejected")
	dl := &recordingDialer{fail: map[string]error{"+15550000001": boom}}
	d := NewDispatcher("run-1", "", dl, nil)

	var dropped []string
	d.OnDropped = func(ctx context.Context, item contacts.QueueItem, err error) {
		assert.ErrorIs(t, err, boom)
		dropped = append(dropped, item.Phone)
	}
	d.EnqueueAll(queue("+15550000001", "+15550000002"))

	require.True(t, d.Advance(ctx))
	assert.Equal(t, []string{"+15550000001"}, dropped)
	c, ok := d.InFlight()
	require.True(t, ok)
	assert.Equal(t, "+15550000002", c.To)
}

func TestAdvance_AllFailuresDrainQueue(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher("run-1", "", nil, nil)
	var dropped int
	d.OnDropped = func(ctx context.Context, item contacts.QueueItem, err error) {
		assert.ErrorIs(t, err, ErrDialerNotConfigured)
		dropped++
	}
	d.EnqueueAll(queue("+15550000001", "+15550000002", "+15550000003"))

	assert.False(t, d.Advance(ctx))
	assert.Equal(t, 3, dropped)
	assert.Equal(t, 0, d.Pending())
	_, ok := d.InFlight()
	assert.False(t, ok)
}

func TestStop_PreventsNextDispatch(t *testing.T) {
	ctx := context.Background()
	dl := &recordingDialer{}
	d := NewDispatcher("run-1", "", dl, nil)
	d.EnqueueAll(queue("+15550000001", "+15550000002"))
	require.True(t, d.Advance(ctx))

	d.Stop()
	assert.True(t, d.Stopped())
	assert.True(t, d.Complete(ctx, "+15550000001"))
	assert.Equal(t, []string{"+15550000001"}, dl.placed())
	assert.Equal(t, 1, d.Pending())
}

type binderFunc func(token string, p phone.Canonical) bool

func (f binderFunc) Bind(token string, p phone.Canonical) bool { return f(token, p) }

func TestAdvance_BindsTokenBeforeDialing(t *testing.T) {
	ctx := context.Background()
	bound := map[string]string{}
	dl := DialerFunc(func(ctx context.Context, req Request) (Result, error) {
		if bound[req.Token] != req.To {
			t.Errorf("token %s not bound before dialing", req.Token)
		}
		return Result{ProviderCallID: "CA1"}, nil
	})
	d := NewDispatcher("run-1", "", dl, binderFunc(func(token string, p phone.Canonical) bool {
		bound[token] = p
		return true
	}))
	d.NewToken = func() string { return "tok-1" }
	d.EnqueueAll(queue("+15550000001"))

	require.True(t, d.Advance(ctx))
	assert.Equal(t, "+15550000001", bound["tok-1"])
}

func TestAdvance_SingleFlightUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	var active, maxActive, total int32
	dl := DialerFunc(func(ctx context.Context, req Request) (Result, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		atomic.AddInt32(&total, 1)
		atomic.AddInt32(&active, -1)
		return Result{ProviderCallID: "CA"}, nil
	})
	d := NewDispatcher("run-1", "", dl, nil)
	d.EnqueueAll(queue("+15550000001", "+15550000002", "+15550000003"))

	var g errgroup.Group
	for i := 0; i < 64; i++ {
		g.Go(func() error {
			d.Advance(ctx)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), atomic.LoadInt32(&total), "exactly one call may be placed before a terminal event")
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
	assert.Equal(t, 2, d.Pending())
}

func TestComplete_NthDispatchFollowsTerminalEvent(t *testing.T) {
	ctx := context.Background()
	dl := &recordingDialer{}
	d := NewDispatcher("run-1", "", dl, nil)
	phones := []string{"+15550000001", "+15550000002", "+15550000003"}
	d.EnqueueAll(queue(phones...))
	require.True(t, d.Advance(ctx))

	for i, p := range phones {
		require.Len(t, dl.placed(), i+1)

		var g errgroup.Group
		for j := 0; j < 16; j++ {
			g.Go(func() error {
				d.Complete(ctx, p)
				d.Advance(ctx)
				return nil
			})
		}
		require.NoError(t, g.Wait())
	}
	assert.Equal(t, phones, dl.placed())
}
