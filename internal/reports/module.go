// Package reports provides the monthly client report module.
package reports

import (
	apphttp "agency_portal_backend/internal/http"
	"agency_portal_backend/internal/reports/handler"
	"agency_portal_backend/internal/reports/repository"
	"agency_portal_backend/internal/reports/service"
	"agency_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the reports module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the report service. The store is created here; the readers
// and collaborators come from the other modules.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, deps service.Deps) *Module {
	deps.Store = repository.New(pool)

	svc := service.New(deps)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "reports"
}

// Service exposes batch generation to the scheduler.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Staff.POST("/reports/monthly", m.handler.GenerateMonthly)
}

var _ apphttp.Module = (*Module)(nil)
