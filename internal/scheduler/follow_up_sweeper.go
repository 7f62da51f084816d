package scheduler

import (
	"context"
	"time"

	"agency_portal_backend/internal/notification/outbox"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultSweepInterval = 10 * time.Minute
	defaultSweepGrace    = 15 * time.Minute
	sweepBatchSize       = 50
)

type DueLister interface {
	ListDue(ctx context.Context, before time.Time, limit int) ([]outbox.Record, error)
}

type FollowUpEnqueuer interface {
	EnqueueLeadFollowUp(ctx context.Context, scheduledEmailID uuid.UUID, runAt time.Time) error
}

// FollowUpSweeper re-queues follow-ups that are overdue and still unsent,
// for instance when Redis was unavailable at intake.
type FollowUpSweeper struct {
	repo     DueLister
	queue    FollowUpEnqueuer
	log      *logger.Logger
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

func NewFollowUpSweeper(repo DueLister, queue FollowUpEnqueuer, log *logger.Logger, interval time.Duration) *FollowUpSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &FollowUpSweeper{
		repo:     repo,
		queue:    queue,
		log:      log,
		interval: interval,
		grace:    defaultSweepGrace,
		now:      time.Now,
	}
}

func (s *FollowUpSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *FollowUpSweeper) sweep(ctx context.Context) int {
	records, err := s.repo.ListDue(ctx, s.now().UTC().Add(-s.grace), sweepBatchSize)
	if err != nil {
		s.log.Warn("follow-up sweep failed", "error", err)
		return 0
	}

	queued := 0
	for _, rec := range records {
		if err := s.queue.EnqueueLeadFollowUp(ctx, rec.ID, s.now()); err != nil {
			s.log.Warn("failed to requeue follow-up", "scheduledEmailId", rec.ID, "error", err)
			continue
		}
		queued++
	}
	if queued > 0 {
		s.log.Info("requeued overdue follow-ups", "count", queued)
	}
	return queued
}
