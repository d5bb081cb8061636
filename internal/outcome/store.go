package outcome

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"outbound-dialer/internal/phone"
	"outbound-dialer/pkg/logger"
)

var (
	ErrInvalidKind  = errors.New("outcome: invalid result kind")
	ErrInvalidPhone = errors.New("outcome: phone required")
)

// Store records terminal outcomes with precedence rules.
//
// Invariants:
// - successfully_transferred is never replaced once stored.
// - left_voicemail is replaced only by successfully_transferred.
// - A write that loses on precedence is a silent no-op, not an error.
//
// All writes are serialized by a store-wide lock so the precedence
// check-then-write stays atomic against concurrent webhook handlers.
type Store struct {
	mu    sync.Mutex
	repo  Repository
	clock func() time.Time
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo, clock: time.Now}
}

// Record stores result for phone unless a higher-or-equal precedence result
// is already stored. Negative durations are clamped to zero.
func (s *Store) Record(ctx context.Context, p phone.Canonical, name string, result Kind, durationSeconds int) (Outcome, bool, error) {
	if p == "" {
		return Outcome{}, false, ErrInvalidPhone
	}
	if !result.Valid() {
		return Outcome{}, false, fmt.Errorf("%w: %q", ErrInvalidKind, result)
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, accepted, err := s.repo.PutIfPrecedence(ctx, Outcome{
		Phone:           p,
		Name:            name,
		Result:          result,
		DurationSeconds: durationSeconds,
		Timestamp:       s.clock().UTC(),
	})
	if err != nil {
		return Outcome{}, false, fmt.Errorf("outcome: record %s: %w", p, err)
	}

	log := logger.From(ctx)
	if accepted {
		log.Info("outcome recorded", "phone", p, "result", result, "duration_s", durationSeconds)
	} else {
		log.Debug("outcome kept", "phone", p, "stored", stored.Result, "rejected", result)
	}
	return stored, accepted, nil
}

// Get returns the stored outcome for phone.
func (s *Store) Get(ctx context.Context, p phone.Canonical) (Outcome, bool, error) {
	return s.repo.Get(ctx, p)
}

// Final reports whether phone already holds a result that no call-status
// signal can replace (transfer or voicemail).
func (s *Store) Final(ctx context.Context, p phone.Canonical) bool {
	o, ok, err := s.repo.Get(ctx, p)
	if err != nil || !ok {
		return false
	}
	return o.Result.Precedence() > 0
}

// ReadAll returns every stored outcome ordered by phone.
func (s *Store) ReadAll(ctx context.Context) ([]Outcome, error) {
	return s.repo.List(ctx)
}

// Reset clears the table for a new campaign upload.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Reset(ctx)
}
