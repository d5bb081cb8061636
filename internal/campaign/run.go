package campaign

import (
	"sync"
	"time"

	"outbound-dialer/internal/contacts"
	"outbound-dialer/internal/dispatch"
	"outbound-dialer/internal/phone"
)

// Run is the orchestrator state for one started campaign: its directory,
// progress tracker and dispatcher. A new Run is built on every start, so
// nothing from a previous run leaks into the next one.
type Run struct {
	ID        string
	StartedAt time.Time

	Directory  *contacts.Directory
	Tracker    *Tracker
	Dispatcher *dispatch.Dispatcher

	mu       sync.Mutex
	declined map[phone.Canonical]struct{}
	report   string
}

func newRun(id string, startedAt time.Time, dir *contacts.Directory) *Run {
	return &Run{
		ID:        id,
		StartedAt: startedAt,
		Directory: dir,
		declined:  map[phone.Canonical]struct{}{},
	}
}

// resolve finds the contact for a webhook. The per-call token wins; raw
// phones are tried in order after it.
func (r *Run) resolve(token string, phones ...string) (contacts.Contact, phone.Canonical, bool) {
	if p, ok := r.Directory.LookupByClient(token); ok {
		if c, ok := r.Directory.Lookup(p); ok {
			return c, p, true
		}
	}
	for _, raw := range phones {
		if c, ok := r.Directory.Lookup(raw); ok {
			return c, c.Phone(), true
		}
	}
	return contacts.Contact{}, "", false
}

// markDeclined remembers that the contact answered the menu without asking
// for a transfer.
func (r *Run) markDeclined(p phone.Canonical) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.declined[p] = struct{}{}
}

func (r *Run) hasDeclined(p phone.Canonical) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.declined[p]
	return ok
}

func (r *Run) setReport(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = name
}

// Report is the snapshot written when the run completed, if any.
func (r *Run) Report() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report
}
