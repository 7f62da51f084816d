package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"agency_portal_backend/internal/adapters/storage"
	"agency_portal_backend/internal/audit"
	billingrepo "agency_portal_backend/internal/billing/repository"
	clientrepo "agency_portal_backend/internal/clients/repository"
	"agency_portal_backend/internal/copywriter"
	"agency_portal_backend/internal/email"
	leadrepo "agency_portal_backend/internal/leads/repository"
	"agency_portal_backend/internal/notification"
	"agency_portal_backend/internal/notification/outbox"
	"agency_portal_backend/internal/pdf"
	projectrepo "agency_portal_backend/internal/projects/repository"
	"agency_portal_backend/internal/reconcile"
	reportrepo "agency_portal_backend/internal/reports/repository"
	reportservice "agency_portal_backend/internal/reports/service"
	"agency_portal_backend/internal/scheduler"
	"agency_portal_backend/platform/ai/openai"
	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if !cfg.IsSchedulerEnabled() {
		log.Error("REDIS_URL is required for the scheduler")
		panic("REDIS_URL is required for the scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	sender := email.NewSender(cfg)
	auditWriter := audit.NewWriter(pool, log)

	objects, err := storage.NewMinIOStore(cfg)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		panic("failed to initialize storage: " + err.Error())
	}

	llm := openai.NewModel(openai.Config{APIKey: cfg.GetLLMAPIKey(), BaseURL: cfg.GetLLMBaseURL(), Model: cfg.GetLLMModel()})
	writer, err := copywriter.New(llm, cfg.GetAgencyName())
	if err != nil {
		log.Error("failed to initialize copywriter", "error", err)
		panic("failed to initialize copywriter: " + err.Error())
	}

	var renderer *pdf.Renderer
	if cfg.IsGotenbergEnabled() {
		renderer = pdf.NewRenderer(pdf.NewGotenbergClient(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword()))
	} else {
		renderer = pdf.NewRenderer(nil)
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	notificationModule := notification.New(pool, sender, cfg, leadrepo.New(pool), log)
	notificationModule.SetFollowUpQueue(client)

	billing := billingrepo.New(pool)
	reports := reportservice.New(reportservice.Deps{
		Store:       reportrepo.New(pool),
		Clients:     clientrepo.New(pool),
		Projects:    projectrepo.New(pool),
		Billing:     billing,
		Activities:  auditWriter,
		Analyst:     writer,
		Renderer:    renderer,
		Objects:     objects,
		Mailer:      sender,
		Audit:       auditWriter,
		AgencyName:  cfg.GetAgencyName(),
		Concurrency: getPositiveIntEnv("REPORT_CONCURRENCY", reportservice.DefaultConcurrency),
		Log:         log,
	})

	checker := reconcile.NewChecker(log, reconcile.PostgresSources(pool)...)

	sweeper := scheduler.NewFollowUpSweeper(outbox.New(pool), client, log, getDurationEnv("FOLLOW_UP_SWEEP_INTERVAL", 5*time.Minute))
	go sweeper.Run(ctx)

	retention := time.Duration(getPositiveIntEnv("PROCESSED_EVENT_RETENTION_DAYS", 90)) * 24 * time.Hour
	cleanup := scheduler.NewProcessedEventCleanup(billing, log, getDurationEnv("PROCESSED_EVENT_CLEANUP_INTERVAL", 6*time.Hour), retention)
	go cleanup.Run(ctx)

	cron, err := scheduler.NewCron(cfg, log)
	if err != nil {
		log.Error("failed to initialize cron", "error", err)
		panic("failed to initialize cron: " + err.Error())
	}
	if err := cron.Start(); err != nil {
		log.Error("failed to start cron", "error", err)
		panic("failed to start cron: " + err.Error())
	}
	defer cron.Shutdown()

	worker, err := scheduler.NewWorker(cfg, scheduler.Handlers{
		FollowUps:  notificationModule,
		Reports:    reports,
		Reconciler: checker,
	}, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

func getPositiveIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
