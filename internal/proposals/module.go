// Package proposals provides the proposal lifecycle bounded context module.
package proposals

import (
	apphttp "agency_portal_backend/internal/http"
	"agency_portal_backend/internal/proposals/handler"
	"agency_portal_backend/internal/proposals/repository"
	"agency_portal_backend/internal/proposals/service"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the proposals bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the proposal service. deps carries the collaborators owned
// by other modules; the store and transactor are created here.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, deps service.Deps) *Module {
	deps.Store = repository.New(pool)
	deps.Tx = db.PoolTransactor{Pool: pool}

	svc := service.New(deps)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "proposals"
}

// Service exposes signature acceptance to the payment dispatcher.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Staff.POST("/proposals/generate", m.handler.Generate)
	ctx.Staff.GET("/proposals/:id", m.handler.Get)
	ctx.Staff.GET("/proposals/:id/pdf", m.handler.DownloadURL)
	ctx.Staff.POST("/proposals/:id/send", m.handler.Send)
	ctx.Staff.POST("/proposals/:id/decline", m.handler.Decline)
}

var _ apphttp.Module = (*Module)(nil)
