package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agency_portal_backend/internal/adapters/payments"
	"agency_portal_backend/internal/adapters/storage"
	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/billing"
	billingrepo "agency_portal_backend/internal/billing/repository"
	"agency_portal_backend/internal/clients"
	"agency_portal_backend/internal/copywriter"
	"agency_portal_backend/internal/email"
	"agency_portal_backend/internal/events"
	apphttp "agency_portal_backend/internal/http"
	"agency_portal_backend/internal/http/router"
	"agency_portal_backend/internal/leads"
	leadrepo "agency_portal_backend/internal/leads/repository"
	"agency_portal_backend/internal/meetings"
	"agency_portal_backend/internal/notification"
	"agency_portal_backend/internal/pdf"
	"agency_portal_backend/internal/projects"
	"agency_portal_backend/internal/proposals"
	"agency_portal_backend/internal/proposals/catalog"
	proposalservice "agency_portal_backend/internal/proposals/service"
	"agency_portal_backend/internal/reports"
	reportservice "agency_portal_backend/internal/reports/service"
	"agency_portal_backend/internal/scheduler"
	"agency_portal_backend/migrations"
	"agency_portal_backend/platform/ai/openai"
	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

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
	log.Info("database connection established")

	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	auditWriter := audit.NewWriter(pool, log)
	sender := email.NewSender(cfg)

	objects, err := storage.NewMinIOStore(cfg)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		panic("failed to initialize storage: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure documents bucket", 5, 2*time.Second, func() error {
		return objects.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinIOBucketDocuments())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}

	writer, err := newCopywriter(cfg)
	if err != nil {
		log.Error("failed to initialize copywriter", "error", err)
		panic("failed to initialize copywriter: " + err.Error())
	}
	renderer := newRenderer(cfg, log)

	cat, err := catalog.Default()
	if err != nil {
		log.Error("failed to load package catalog", "error", err)
		panic("failed to load package catalog: " + err.Error())
	}

	notificationModule := notification.New(pool, sender, cfg, leadrepo.New(pool), log)
	notificationModule.RegisterHandlers(eventBus)

	followUpQueue, closeQueue := initFollowUpQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}
	if followUpQueue != nil {
		notificationModule.SetFollowUpQueue(followUpQueue)
	}

	leadsModule, err := leads.NewModule(pool, eventBus, val, cfg, auditWriter, notificationModule, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}

	projectsModule, err := projects.NewModule(pool, eventBus, val, cfg, auditWriter, log)
	if err != nil {
		log.Error("failed to initialize projects module", "error", err)
		panic("failed to initialize projects module: " + err.Error())
	}

	clientsModule := clients.NewModule(pool, eventBus, val, leadsModule.Repository(), projectsModule.Repository(), auditWriter, log)

	proposalsModule := proposals.NewModule(pool, val, proposalservice.Deps{
		Leads:      leadsModule.Repository(),
		Clients:    clientsModule.Repository(),
		Converter:  clientsModule.Converter(),
		Deposits:   billingrepo.New(pool),
		Writer:     writer,
		Renderer:   renderer,
		Objects:    objects,
		Checkout:   payments.NewStripeCheckout(cfg),
		Audit:      auditWriter,
		Bus:        eventBus,
		Catalog:    cat,
		AgencyName: cfg.GetAgencyName(),
		PortalURL:  cfg.GetAppBaseURL(),
		Log:        log,
	})

	billingModule := billing.NewModule(pool, cfg, clientsModule.Repository(), projectsModule.Service(), proposalsModule.Service(), auditWriter, log)

	meetingsModule, err := meetings.NewModule(
		pool,
		val,
		leadsModule.Repository(),
		clientsModule.Converter(),
		openai.NewTranscriber(openai.Config{APIKey: cfg.GetLLMAPIKey(), BaseURL: cfg.GetLLMBaseURL(), Model: cfg.GetLLMTranscribeModel()}),
		writer,
		objects,
		auditWriter,
		log,
	)
	if err != nil {
		log.Error("failed to initialize meetings module", "error", err)
		panic("failed to initialize meetings module: " + err.Error())
	}

	reportsModule := reports.NewModule(pool, val, reportservice.Deps{
		Clients:    clientsModule.Repository(),
		Projects:   projectsModule.Repository(),
		Billing:    billingrepo.New(pool),
		Activities: auditWriter,
		Analyst:    writer,
		Renderer:   renderer,
		Objects:    objects,
		Mailer:     sender,
		Audit:      auditWriter,
		AgencyName: cfg.GetAgencyName(),
		Log:        log,
	})

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			leadsModule,
			clientsModule,
			projectsModule,
			proposalsModule,
			billingModule,
			meetingsModule,
			reportsModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func newCopywriter(cfg *config.Config) (*copywriter.Copywriter, error) {
	llm := openai.NewModel(openai.Config{
		APIKey:  cfg.GetLLMAPIKey(),
		BaseURL: cfg.GetLLMBaseURL(),
		Model:   cfg.GetLLMModel(),
	})
	return copywriter.New(llm, cfg.GetAgencyName())
}

func newRenderer(cfg config.GotenbergConfig, log *logger.Logger) *pdf.Renderer {
	if !cfg.IsGotenbergEnabled() {
		log.Warn("GOTENBERG_URL not configured; PDF documents disabled")
		return pdf.NewRenderer(nil)
	}
	return pdf.NewRenderer(pdf.NewGotenbergClient(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword()))
}

func initFollowUpQueue(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if !cfg.IsSchedulerEnabled() {
		log.Warn("REDIS_URL not configured; lead follow-ups stay in the database until the scheduler sweeps them")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
