package audit

import (
	"context"
	"errors"
	"time"

	"tenant-console/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
	// List returns matching events oldest first.
	List(ctx context.Context, f Filter) ([]Event, error)
}

// Filter narrows a listing. Zero fields match everything; the range is [From, To).
type Filter struct {
	UserID string
	From   time.Time
	To     time.Time
	// Limit keeps only the most recent events when positive.
	Limit int
}

func (f Filter) match(e Event) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service records audit events. Callers treat recording as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.List(ctx, f)
}

// Record appends e and logs, rather than returns, any failure.
// A nil Service is valid and records nothing.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", e.Type, "err", err)
	}
}
