package routing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"outbound-dialer/internal/phone"
)

var ErrInvalidOverride = errors.New("routing: invalid override")

// AdminOverrideEngine applies expiry-based transfer overrides: an admin can
// redirect transfers (for one contact or for everyone) to a specific line
// for a bounded time. Every applied override is audited.
//
// Overrides are silent: the decision carries no special reason.
type AdminOverrideEngine struct {
	Store OverrideStore
	Audit AuditLogger
	Now   func() time.Time
}

// OverrideStore resolves currently-active overrides.
type OverrideStore interface {
	// GetActiveOverride returns an active override if one exists for this phone.
	// If none exists, it returns (Override{}, false, nil).
	GetActiveOverride(ctx context.Context, p phone.Canonical, now time.Time) (Override, bool, error)
}

type AuditLogger interface {
	LogOverrideApplied(ctx context.Context, e OverrideAuditEvent) error
}

type Override struct {
	ID string `json:"id"`
	// Phone limits the override to one contact; empty applies to every transfer.
	Phone     string    `json:"phone,omitempty"`
	ConnectTo string    `json:"connect_to"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedBy string    `json:"created_by,omitempty"`

	// Metadata is optional JSON for internal audit correlation.
	Metadata string `json:"metadata,omitempty"`
}

type OverrideAuditEvent struct {
	OverrideID string
	Phone      string
	CallSid    string
	SourceIP   string

	ConnectTo string
	AppliedAt time.Time
	ExpiresAt time.Time

	Metadata string
}

func NewAdminOverrideEngine(store OverrideStore, audit AuditLogger) *AdminOverrideEngine {
	return &AdminOverrideEngine{Store: store, Audit: audit, Now: time.Now}
}

// Decide returns (decision, true, nil) if an active override was applied.
// Returns (Decision{}, false, nil) if no override applies.
func (e *AdminOverrideEngine) Decide(ctx context.Context, p phone.Canonical) (Decision, bool, error) {
	if e.Store == nil {
		return Decision{}, false, nil
	}
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}

	o, ok, err := e.Store.GetActiveOverride(ctx, p, now)
	if err != nil {
		return Decision{}, false, err
	}
	if !ok || !o.ExpiresAt.After(now) {
		return Decision{}, false, nil
	}
	if o.ConnectTo == "" {
		return Decision{}, false, errors.New("routing: override connect_to empty")
	}

	d := Decision{Phone: p, Action: ActionConnect, ConnectTo: o.ConnectTo}

	if e.Audit != nil {
		meta := CallMetaFrom(ctx)
		_ = e.Audit.LogOverrideApplied(ctx, OverrideAuditEvent{
			OverrideID: o.ID,
			Phone:      p,
			CallSid:    meta.CallSid,
			SourceIP:   meta.SourceIP,
			ConnectTo:  o.ConnectTo,
			AppliedAt:  now,
			ExpiresAt:  o.ExpiresAt,
			Metadata:   o.Metadata,
		})
	}
	return d, true, nil
}

// MemoryOverrideStore keeps overrides in process memory.
type MemoryOverrideStore struct {
	mu        sync.Mutex
	overrides map[string]Override
}

func NewMemoryOverrideStore() *MemoryOverrideStore {
	return &MemoryOverrideStore{overrides: map[string]Override{}}
}

// Put validates and stores an override, assigning an id when missing.
func (s *MemoryOverrideStore) Put(o Override) (Override, error) {
	if o.ConnectTo == "" || o.ExpiresAt.IsZero() {
		return Override{}, ErrInvalidOverride
	}
	if o.Phone != "" {
		p := phone.Normalize(o.Phone)
		if p == "" {
			return Override{}, ErrInvalidOverride
		}
		o.Phone = p
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[o.ID] = o
	return o, nil
}

func (s *MemoryOverrideStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.overrides[id]
	delete(s.overrides, id)
	return ok
}

// Active lists unexpired overrides, soonest expiry first. Expired entries
// are pruned.
func (s *MemoryOverrideStore) Active(now time.Time) []Override {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Override, 0, len(s.overrides))
	for id, o := range s.overrides {
		if !o.ExpiresAt.After(now) {
			delete(s.overrides, id)
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

// GetActiveOverride prefers an override for the phone over a global one;
// among equals the latest expiry wins.
func (s *MemoryOverrideStore) GetActiveOverride(ctx context.Context, p phone.Canonical, now time.Time) (Override, bool, error) {
	var best Override
	found := false
	for _, o := range s.Active(now) {
		if o.Phone != "" && o.Phone != p {
			continue
		}
		switch {
		case !found:
			best, found = o, true
		case o.Phone != "" && best.Phone == "":
			best = o
		case (o.Phone == "") == (best.Phone == "") && o.ExpiresAt.After(best.ExpiresAt):
			best = o
		}
	}
	return best, found, nil
}
