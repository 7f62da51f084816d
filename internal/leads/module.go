// Package leads provides the lead intake bounded context module.
// This file wires the repository, service and handler and registers routes.
package leads

import (
	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/events"
	apphttp "agency_portal_backend/internal/http"
	"agency_portal_backend/internal/leads/domain"
	"agency_portal_backend/internal/leads/handler"
	"agency_portal_backend/internal/leads/repository"
	"agency_portal_backend/internal/leads/service"
	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	val *validator.Validator,
	cfg config.AgencyConfig,
	recorder audit.Recorder,
	followUps service.FollowUpScheduler,
	log *logger.Logger,
) (*Module, error) {
	if err := val.RegisterOneOf("lead_status", domain.IsValidStatus); err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	svc := service.New(repo, followUps, recorder, eventBus, cfg.GetPhoneDefaultRegion(), log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository exposes lead persistence to modules that convert or book leads.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts lead routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.API.POST("/leads", ctx.PublicFormLimiter.RateLimit(), m.handler.Create)

	ctx.Staff.GET("/leads/:id", m.handler.GetByID)
	ctx.Staff.PATCH("/leads/:id/status", m.handler.UpdateStatus)
	ctx.Staff.DELETE("/leads/:id", m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)
