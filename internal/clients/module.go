// Package clients provides client accounts, the portal feed and lead
// conversion.
package clients

import (
	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/clients/handler"
	"agency_portal_backend/internal/clients/repository"
	"agency_portal_backend/internal/clients/service"
	"agency_portal_backend/internal/events"
	apphttp "agency_portal_backend/internal/http"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler   *handler.Handler
	converter *service.Converter
	repo      *repository.Repository
}

func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	val *validator.Validator,
	leads service.LeadStore,
	projects service.ProjectWriter,
	auditWriter *audit.Writer,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	converter := service.NewConverter(db.PoolTransactor{Pool: pool}, leads, repo, projects, auditWriter, eventBus, log)
	svc := service.New(repo, auditWriter)

	return &Module{
		handler:   handler.New(svc, converter, val),
		converter: converter,
		repo:      repo,
	}
}

func (m *Module) Name() string {
	return "clients"
}

// Converter exposes lead conversion to proposals and meetings.
func (m *Module) Converter() *service.Converter {
	return m.converter
}

func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Staff.POST("/leads/:id/convert", m.handler.ConvertLead)

	ctx.Protected.GET("/clients/:id", m.handler.Get)
	ctx.Protected.GET("/clients/:id/activities", m.handler.Activities)
}

var _ apphttp.Module = (*Module)(nil)
