package scheduler

import (
	"context"
	"fmt"
	"os"

	"agency_portal_backend/internal/reconcile"
	reportdomain "agency_portal_backend/internal/reports/domain"
	reporttransport "agency_portal_backend/internal/reports/transport"
	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// FollowUpSender delivers one stored follow-up mail.
type FollowUpSender interface {
	SendFollowUp(ctx context.Context, scheduledEmailID uuid.UUID) error
}

// MonthlyReporter builds the reports of a month for every client on a plan.
type MonthlyReporter interface {
	ResolvePeriod(year, month int) (reportdomain.Period, error)
	GenerateAll(ctx context.Context, period reportdomain.Period) (reporttransport.BatchResponse, error)
}

// Reconciler runs the consistency checks.
type Reconciler interface {
	Run(ctx context.Context) (reconcile.Report, error)
}

type Handlers struct {
	FollowUps  FollowUpSender
	Reports    MonthlyReporter
	Reconciler Reconciler
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, h Handlers, log *logger.Logger) (*Worker, error) {
	opt, err := redisOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		Logger:   asynqLogger{log},
		LogLevel: asynq.WarnLevel,
	})

	return &Worker{
		server: server,
		mux:    NewServeMux(h, log),
		log:    log,
	}, nil
}

// NewServeMux routes every task type to its handler.
func NewServeMux(h Handlers, log *logger.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskLeadFollowUp, func(ctx context.Context, task *asynq.Task) error {
		return handleLeadFollowUp(ctx, h.FollowUps, task)
	})
	mux.HandleFunc(TaskMonthlyReports, func(ctx context.Context, task *asynq.Task) error {
		return handleMonthlyReports(ctx, h.Reports, task, log)
	})
	mux.HandleFunc(TaskReconcile, func(ctx context.Context, _ *asynq.Task) error {
		_, err := h.Reconciler.Run(ctx)
		return err
	})
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func handleLeadFollowUp(ctx context.Context, sender FollowUpSender, task *asynq.Task) error {
	payload, err := ParseLeadFollowUpPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	id, err := uuid.Parse(payload.ScheduledEmailID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	return sender.SendFollowUp(ctx, id)
}

func handleMonthlyReports(ctx context.Context, reports MonthlyReporter, task *asynq.Task, log *logger.Logger) error {
	payload, err := ParseMonthlyReportsPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	period, err := reports.ResolvePeriod(payload.Year, payload.Month)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	batch, err := reports.GenerateAll(ctx, period)
	if err != nil {
		return err
	}
	log.WithContext(ctx).Info("monthly report task finished", "period", period.Label(), "generated", batch.Generated, "failed", batch.Failed)
	return nil
}

// asynqLogger routes asynq's own logging through the structured logger.
type asynqLogger struct{ log *logger.Logger }

func (l asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...any) {
	l.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}
