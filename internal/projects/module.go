// Package projects provides the project delivery bounded context module.
package projects

import (
	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/events"
	apphttp "agency_portal_backend/internal/http"
	"agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/internal/projects/handler"
	"agency_portal_backend/internal/projects/repository"
	"agency_portal_backend/internal/projects/service"
	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the projects bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	val *validator.Validator,
	cfg config.AgencyConfig,
	recorder audit.Recorder,
	log *logger.Logger,
) (*Module, error) {
	if err := val.RegisterOneOf("project_stage", domain.IsValidStage); err != nil {
		return nil, err
	}
	if err := val.RegisterOneOf("package_tier", domain.IsValidPackage); err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	provisioner := service.NewProvisioner(repo, recorder, cfg.GetProvisioningRepoOrg(), cfg.GetProvisioningStagingDomain(), log)
	svc := service.New(repo, provisioner, recorder, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}, nil
}

func (m *Module) Name() string {
	return "projects"
}

// Service exposes stage advancement to the payment dispatcher.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes project persistence to conversion and reporting.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Staff.GET("/projects/:id", m.handler.Get)
	ctx.Staff.PATCH("/projects/:id/status", m.handler.UpdateStatus)
	ctx.Staff.PATCH("/projects/:id/checklist", m.handler.UpdateChecklist)
}

var _ apphttp.Module = (*Module)(nil)
