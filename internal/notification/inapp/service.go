package inapp

import (
	"context"
	"time"

	"agency_portal_backend/internal/notification/sse"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Store persists staff notifications.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	ListRecent(ctx context.Context, limit int) ([]Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Broadcaster pushes an event to every connected staff member.
type Broadcaster interface {
	Broadcast(event sse.Event)
}

type Service struct {
	repo Store
	sse  Broadcaster
	log  *logger.Logger
}

func NewService(repo Store, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// SetSSE injects the live stream once it exists.
func (s *Service) SetSSE(b Broadcaster) {
	s.sse = b
}

// Send persists the notification and pushes it to connected staff.
func (s *Service) Send(ctx context.Context, p CreateParams) (Notification, error) {
	notif, err := s.repo.Create(ctx, p)
	if err != nil {
		s.log.WithContext(ctx).Error("failed to persist notification", "type", p.Type, "error", err)
		return Notification{}, err
	}

	if s.sse != nil {
		s.sse.Broadcast(sse.Event{
			Type:    sse.EventNotification,
			Message: notif.Message,
			Data:    notif,
		})
	}
	return notif, nil
}

func (s *Service) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.repo.MarkSent(ctx, id, at)
}

func (s *Service) List(ctx context.Context, limit int) ([]Notification, error) {
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return s.repo.ListRecent(ctx, limit)
}
