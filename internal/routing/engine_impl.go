package routing

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"outbound-dialer/internal/phone"
	"outbound-dialer/pkg/logger"
)

// Router picks the agent line a consenting contact is transferred to.
//
// Priority:
//  1. Transfer override (expiry based)
//  2. Weighted selection over the configured agent lines
//
// Return routing decision only. No side effects apart from override audit.
type Router struct {
	Overrides *AdminOverrideEngine

	mu    sync.Mutex
	lines []WeightedDestination
	RNG   *rand.Rand
}

type RouteInput struct {
	Phone phone.Canonical
	RunID string
}

func NewRouter(lines []WeightedDestination, rng *rand.Rand) *Router {
	return &Router{lines: append([]WeightedDestination(nil), lines...), RNG: rng}
}

// SetLines replaces the agent lines.
func (e *Router) SetLines(lines []WeightedDestination) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = append([]WeightedDestination(nil), lines...)
}

func (e *Router) Lines() []WeightedDestination {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]WeightedDestination(nil), e.lines...)
}

func (e *Router) Route(ctx context.Context, in RouteInput) (Decision, error) {
	if in.Phone == "" {
		return Decision{}, errors.New("routing: phone required")
	}

	if e.Overrides != nil {
		d, applied, err := e.Overrides.Decide(ctx, in.Phone)
		if err != nil {
			return Decision{}, err
		}
		if applied {
			return d, nil
		}
	}

	if dest, ok := e.pickDestination(); ok {
		return Decision{Phone: in.Phone, Action: ActionConnect, ConnectTo: dest, Reason: "selected"}, nil
	}
	return Decision{Phone: in.Phone, Action: ActionReject, Reason: "no_eligible_destination"}, nil
}

// PickAgent returns the line to dial for a transfer, or false when no line
// is available.
func (e *Router) PickAgent(ctx context.Context, p phone.Canonical) (string, bool) {
	d, err := e.Route(ctx, RouteInput{Phone: p})
	if err != nil {
		logger.From(ctx).Error("agent routing failed", "phone", p, "err", err)
		return "", false
	}
	if d.Action != ActionConnect {
		logger.From(ctx).Warn("no agent line for transfer", "phone", p, "reason", d.Reason)
		return "", false
	}
	return d.ConnectTo, true
}

func (e *Router) pickDestination() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total int
	for _, d := range e.lines {
		if d.Weight <= 0 {
			continue
		}
		total += d.Weight
	}
	if total <= 0 {
		return "", false
	}

	if e.RNG == nil {
		e.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	r := e.RNG.Intn(total) // 0..total-1

	var acc int
	for _, d := range e.lines {
		if d.Weight <= 0 {
			continue
		}
		acc += d.Weight
		if r < acc {
			return d.TargetURI, true
		}
	}
	return "", false
}
