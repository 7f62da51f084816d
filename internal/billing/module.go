// Package billing receives payment platform webhooks and keeps invoices,
// care subscriptions and client plans in step with them.
package billing

import (
	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/billing/handler"
	"agency_portal_backend/internal/billing/repository"
	"agency_portal_backend/internal/billing/service"
	apphttp "agency_portal_backend/internal/http"
	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler    *handler.Handler
	dispatcher *service.Dispatcher
	repo       *repository.Repository
}

func NewModule(
	pool *pgxpool.Pool,
	cfg config.StripeConfig,
	clients service.ClientStore,
	projects service.ProjectStarter,
	proposals service.ProposalAcceptor,
	recorder audit.Recorder,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	dispatcher := service.NewDispatcher(repo, clients, projects, proposals, recorder, cfg.GetCarePlanPriceIDs(), log)

	return &Module{
		handler:    handler.New(dispatcher, cfg.GetStripeWebhookSecret(), log),
		dispatcher: dispatcher,
		repo:       repo,
	}
}

func (m *Module) Name() string {
	return "billing"
}

// Repository is shared with proposals (deposits) and reports (paid totals).
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.API.POST("/stripe/webhook", m.handler.Webhook)
}

var _ apphttp.Module = (*Module)(nil)
