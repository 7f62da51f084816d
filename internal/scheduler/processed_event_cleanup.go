package scheduler

import (
	"context"
	"time"

	"agency_portal_backend/platform/logger"
)

const (
	defaultEventCleanupInterval = 24 * time.Hour
	defaultEventRetention       = 90 * 24 * time.Hour
)

type EventPurger interface {
	PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProcessedEventCleanup periodically forgets old payment event claims.
type ProcessedEventCleanup struct {
	repo      EventPurger
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewProcessedEventCleanup(repo EventPurger, log *logger.Logger, interval, retention time.Duration) *ProcessedEventCleanup {
	if interval <= 0 {
		interval = defaultEventCleanupInterval
	}
	if retention <= 0 {
		retention = defaultEventRetention
	}

	return &ProcessedEventCleanup{
		repo:      repo,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *ProcessedEventCleanup) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *ProcessedEventCleanup) runOnce(ctx context.Context) {
	deleted, err := c.repo.PurgeEventsBefore(ctx, c.now().UTC().Add(-c.retention))
	if err != nil {
		c.log.Warn("processed event cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		c.log.Info("processed event cleanup completed", "deleted", deleted)
	}
}
