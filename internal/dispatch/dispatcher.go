package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/contacts"
	"outbound-dialer/internal/phone"
	"outbound-dialer/pkg/logger"
)

// TokenBinder registers a per-call token so webhooks can resolve it.
// contacts.Directory satisfies it.
type TokenBinder interface {
	Bind(token string, p phone.Canonical) bool
}

// Dispatcher keeps at most one outbound call in flight.
//
// The queue and the in-flight slot share one mutex. Advance claims the slot
// under the lock and calls the provider after releasing it, so a slow provider
// never blocks webhook handlers and two racing Advance calls cannot both dial.
// The slot is released only by Complete (a terminal call-status) or by a
// failed dispatch; there is no timeout.
type Dispatcher struct {
	mu       sync.Mutex
	queue    []contacts.QueueItem
	inFlight *calls.Call
	stopped  bool

	runID  string
	from   string
	dialer Dialer
	binder TokenBinder

	// OnDropped is called outside the lock for every item whose dispatch failed.
	OnDropped func(ctx context.Context, item contacts.QueueItem, err error)

	NewToken func() string
	Now      func() time.Time
}

func NewDispatcher(runID, from string, dialer Dialer, binder TokenBinder) *Dispatcher {
	return &Dispatcher{
		runID:    runID,
		from:     from,
		dialer:   dialer,
		binder:   binder,
		NewToken: uuid.NewString,
		Now:      time.Now,
	}
}

// EnqueueAll replaces the queue wholesale and clears a previous stop.
func (d *Dispatcher) EnqueueAll(items []contacts.QueueItem) {
	q := make([]contacts.QueueItem, len(items))
	copy(q, items)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = q
	d.stopped = false
}

// Stop prevents further dispatches. A call already placed is not canceled.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
}

// Advance dispatches the next queued contact if nothing is in flight.
// It returns true when a call was accepted by the provider.
//
// A failed dispatch releases the slot, reports the item through OnDropped and
// moves on to the next contact, so one bad number never stalls the run.
func (d *Dispatcher) Advance(ctx context.Context) bool {
	log := logger.From(ctx).With("run_id", d.runID)

	for {
		d.mu.Lock()
		if d.stopped || d.inFlight != nil || len(d.queue) == 0 {
			d.mu.Unlock()
			return false
		}
		item := d.queue[0]
		d.queue = d.queue[1:]
		now := d.Now().UTC()
		call := &calls.Call{
			CallID:    d.NewToken(),
			RunID:     d.runID,
			To:        item.Phone,
			From:      d.from,
			Status:    calls.CallStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}
		d.inFlight = call
		d.mu.Unlock()

		res, err := d.place(ctx, item, call.CallID)
		if err == nil {
			d.mu.Lock()
			if d.inFlight == call {
				call.ProviderCallID = res.ProviderCallID
				call.Status = calls.CallStatusInitiated
				call.UpdatedAt = d.Now().UTC()
			}
			d.mu.Unlock()
			log.Info("call dispatched", "phone", item.Phone, "call_id", call.CallID, "provider_call_id", res.ProviderCallID)
			return true
		}

		log.Error("call dispatch failed", "phone", item.Phone, "call_id", call.CallID, "err", err)
		d.mu.Lock()
		if d.inFlight == call {
			d.inFlight = nil
		}
		d.mu.Unlock()
		if d.OnDropped != nil {
			d.OnDropped(ctx, item, err)
		}
	}
}

func (d *Dispatcher) place(ctx context.Context, item contacts.QueueItem, token string) (Result, error) {
	if d.dialer == nil {
		return Result{}, ErrDialerNotConfigured
	}
	if d.binder != nil {
		d.binder.Bind(token, item.Phone)
	}
	return d.dialer.PlaceCall(ctx, Request{
		To:       item.Phone,
		Token:    token,
		RunID:    d.runID,
		Name:     item.Name,
		ClientID: item.ClientID,
	})
}

// Complete releases the slot if p is the call in flight and advances.
// Late or duplicate terminal events for other phones leave the slot alone.
func (d *Dispatcher) Complete(ctx context.Context, p phone.Canonical) bool {
	d.mu.Lock()
	if d.inFlight == nil || d.inFlight.To != p {
		d.mu.Unlock()
		return false
	}
	d.inFlight = nil
	d.mu.Unlock()

	logger.From(ctx).Debug("call slot released", "run_id", d.runID, "phone", p)
	d.Advance(ctx)
	return true
}

// InFlight returns a copy of the call currently holding the slot.
func (d *Dispatcher) InFlight() (calls.Call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight == nil {
		return calls.Call{}, false
	}
	return *d.inFlight, true
}

// Pending returns how many contacts are still queued.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}
