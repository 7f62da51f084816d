package scheduler

import (
	"time"

	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron enqueues the recurring jobs: monthly reports on the 1st at 06:00 UTC
// and reconciliation daily at 03:00 UTC.
type Cron struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewCron(cfg config.SchedulerConfig, log *logger.Logger) (*Cron, error) {
	opt, err := redisOpt(cfg)
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   asynqLogger{log},
		LogLevel: asynq.WarnLevel,
	})
	if err := registerPeriodic(s, queueName(cfg)); err != nil {
		return nil, err
	}
	return &Cron{scheduler: s, log: log}, nil
}

type registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

func registerPeriodic(r registrar, queue string) error {
	reports, err := NewMonthlyReportsTask(MonthlyReportsPayload{})
	if err != nil {
		return err
	}
	if _, err := r.Register(MonthlyReportsCron, reports, asynq.Queue(queue), asynq.Timeout(time.Hour), asynq.MaxRetry(2)); err != nil {
		return err
	}
	if _, err := r.Register(ReconcileCron, NewReconcileTask(), asynq.Queue(queue), asynq.MaxRetry(1)); err != nil {
		return err
	}
	return nil
}

// Start begins enqueueing in the background.
func (c *Cron) Start() error {
	return c.scheduler.Start()
}

func (c *Cron) Shutdown() {
	c.scheduler.Shutdown()
}
