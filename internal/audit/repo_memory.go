package audit

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryRepo is an in-memory append-only repository. It keeps at most Limit
// events (oldest dropped first); zero means unbounded.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	Limit  int
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.Limit > 0 && len(r.events) > r.Limit {
		r.events = append([]Event(nil), r.events[len(r.events)-r.Limit:]...)
	}
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// List returns up to limit events, newest first.
func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}

// LogRepo writes every event to a structured logger before passing it on.
type LogRepo struct {
	Log  *slog.Logger
	Next Repository
}

func (r LogRepo) Append(ctx context.Context, e Event) error {
	if r.Log != nil {
		r.Log.InfoContext(ctx, "audit",
			"audit_id", e.ID,
			"type", e.Type,
			"actor_user_id", e.ActorUserID,
			"actor_role", e.ActorRole,
			"ip", e.IPAddress,
			"run_id", e.RunID,
			"phone", e.Phone,
			"message", e.Message,
		)
	}
	if r.Next == nil {
		return nil
	}
	return r.Next.Append(ctx, e)
}

func (r LogRepo) List(ctx context.Context, limit int) ([]Event, error) {
	if l, ok := r.Next.(Lister); ok {
		return l.List(ctx, limit)
	}
	return nil, nil
}
