// Package meetings books client calls and turns their recordings into
// transcripts, summaries and lead qualification.
package meetings

import (
	"agency_portal_backend/internal/adapters/storage"
	"agency_portal_backend/internal/audit"
	apphttp "agency_portal_backend/internal/http"
	"agency_portal_backend/internal/meetings/domain"
	"agency_portal_backend/internal/meetings/handler"
	"agency_portal_backend/internal/meetings/repository"
	"agency_portal_backend/internal/meetings/service"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(
	pool *pgxpool.Pool,
	val *validator.Validator,
	leads service.LeadStore,
	converter service.Converter,
	transcriber service.Transcriber,
	analyzer service.Analyzer,
	objects storage.ObjectStore,
	recorder audit.Recorder,
	log *logger.Logger,
) (*Module, error) {
	if err := val.RegisterOneOf("meeting_type", domain.IsValidType); err != nil {
		return nil, err
	}

	svc := service.New(service.Deps{
		Store:       repository.New(pool),
		Leads:       leads,
		Converter:   converter,
		Transcriber: transcriber,
		Analyzer:    analyzer,
		Objects:     objects,
		Tx:          db.PoolTransactor{Pool: pool},
		Audit:       recorder,
		Log:         log,
	})
	return &Module{handler: handler.New(svc, val)}, nil
}

func (m *Module) Name() string {
	return "meetings"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Staff.POST("/meetings", m.handler.Book)
	ctx.Staff.GET("/meetings/:id", m.handler.Get)
	ctx.Staff.POST("/transcribe", m.handler.Transcribe)
}

var _ apphttp.Module = (*Module)(nil)
