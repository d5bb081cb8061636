package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Lister is implemented by repositories that can read events back.
type Lister interface {
	List(ctx context.Context, limit int) ([]Event, error)
}

// Service records operator actions. Callers should treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var (
	ErrInvalidEvent = errors.New("audit: invalid event")
	ErrNotListable  = errors.New("audit: repository cannot list events")
	errNoRepository = errors.New("audit: repository not configured")
)

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errNoRepository
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAction records an operator action against a run.
func (s *Service) LogAction(ctx context.Context, typ EventType, actorUserID, actorRole, ip, runID, message string) error {
	return s.Append(ctx, Event{
		Type:        typ,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		RunID:       runID,
		Message:     message,
	})
}

// OverrideApplied describes one transfer redirected by an override. It has no
// operator actor: overrides are applied while handling provider webhooks.
type OverrideApplied struct {
	OverrideID string
	Phone      string
	ConnectTo  string
	CallSid    string
	SourceIP   string
	Metadata   string
}

// LogOverride records a transfer override being applied to a call.
func (s *Service) LogOverride(ctx context.Context, o OverrideApplied) error {
	return s.Append(ctx, Event{
		Type:       EventTypeOverrideApplied,
		IPAddress:  o.SourceIP,
		Phone:      o.Phone,
		OverrideID: o.OverrideID,
		CallSid:    o.CallSid,
		Message:    "transfer routed to " + o.ConnectTo,
		Metadata:   o.Metadata,
	})
}

// List returns recent events, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, errNoRepository
	}
	l, ok := s.repo.(Lister)
	if !ok {
		return nil, ErrNotListable
	}
	return l.List(ctx, limit)
}
