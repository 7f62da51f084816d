package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/events"
	"agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/internal/projects/repository"
	"agency_portal_backend/internal/projects/transport"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

const msgProjectNotFound = "project not found"

// Store is the project persistence the service needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Project, error)
	Advance(ctx context.Context, id uuid.UUID, from, to domain.Stage, at time.Time, onAdvanced db.TxHook) (bool, error)
	MergeChecklist(ctx context.Context, id uuid.UUID, items map[string]bool) error
	SetInfrastructure(ctx context.Context, id uuid.UUID, repoURL, stagingURL string, onAssigned db.TxHook) (bool, error)
}

// Service walks projects through their stages.
type Service struct {
	store       Store
	provisioner *Provisioner
	audit       audit.Recorder
	bus         events.Bus
	now         func() time.Time
	log         *logger.Logger
}

func New(store Store, provisioner *Provisioner, recorder audit.Recorder, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:       store,
		provisioner: provisioner,
		audit:       recorder,
		bus:         bus,
		now:         time.Now,
		log:         log,
	}
}

// Get returns a project with its progress percentage.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.ProjectResponse, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return transport.ProjectResponse{}, err
	}
	return toResponse(p), nil
}

// Advance moves the project one stage forward from expected. The stage audit
// commits with the move. When the project is no longer in expected the call
// does nothing and reports false, so redelivered triggers are harmless.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, expected domain.Stage) (bool, error) {
	to, ok := expected.Next()
	if !ok {
		return false, apperr.Validation(fmt.Sprintf("project cannot advance from %s", expected))
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}

	changed, err := s.store.Advance(ctx, id, expected, to, s.now().UTC(), func(q db.Querier) error {
		return s.audit.RecordTx(ctx, q, audit.Entry{
			Action:    audit.ActionProjectStageAdvanced,
			Payload:   map[string]any{"projectId": id.String(), "from": string(expected), "to": string(to)},
			ClientID:  &p.ClientID,
			ProjectID: &p.ID,
		})
	})
	if err != nil {
		return false, apperr.Internal("advance project", err)
	}
	if !changed {
		s.log.WithContext(ctx).Info("project stage advance skipped", "projectId", id, "expected", expected)
		return false, nil
	}

	s.bus.Publish(ctx, events.ProjectStageAdvanced{
		BaseEvent: events.NewBaseEvent(),
		ProjectID: p.ID,
		ClientID:  p.ClientID,
		From:      string(expected),
		To:        string(to),
	})
	return true, nil
}

// SetStatus is the staff entry point. Only the next stage is accepted.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, req transport.UpdateProjectStatusRequest) (transport.ProjectResponse, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return transport.ProjectResponse{}, err
	}

	to := domain.Stage(req.Status)
	if !domain.CanTransition(p.Status, to) {
		return transport.ProjectResponse{}, apperr.Validation(fmt.Sprintf("project cannot move from %s to %s", p.Status, to))
	}

	changed, err := s.Advance(ctx, id, p.Status)
	if err != nil {
		return transport.ProjectResponse{}, err
	}
	if !changed {
		return transport.ProjectResponse{}, apperr.Conflict("project status changed, reload and retry")
	}
	return s.Get(ctx, id)
}

// UpdateChecklist merges launch checklist items.
func (s *Service) UpdateChecklist(ctx context.Context, id uuid.UUID, req transport.UpdateChecklistRequest) (transport.ProjectResponse, error) {
	err := s.store.MergeChecklist(ctx, id, req.Items)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ProjectResponse{}, apperr.NotFound(msgProjectNotFound)
	}
	if err != nil {
		return transport.ProjectResponse{}, apperr.Internal("update launch checklist", err)
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return transport.ProjectResponse{}, err
	}
	if err := s.audit.Record(ctx, audit.Entry{
		Action:    audit.ActionProjectChecklistUpdated,
		Payload:   map[string]any{"projectId": id.String(), "items": req.Items},
		ClientID:  &p.ClientID,
		ProjectID: &p.ID,
	}); err != nil {
		return transport.ProjectResponse{}, apperr.Internal("record checklist update", err)
	}
	return toResponse(p), nil
}

// StartAfterDeposit moves a paid project out of intake and provisions its
// infrastructure. A started project without a repository is provisioned on
// every call, so a redelivered payment finishes an interrupted start.
// Reports whether the stage changed.
func (s *Service) StartAfterDeposit(ctx context.Context, id uuid.UUID) (bool, error) {
	advanced, err := s.Advance(ctx, id, domain.StageIntake)
	if err != nil {
		return false, err
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return advanced, err
	}
	if p.Reached(domain.StageCopy) && p.RepoURL == nil {
		if err := s.provisioner.Provision(ctx, p); err != nil {
			return advanced, err
		}
	}
	return advanced, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (domain.Project, error) {
	p, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Project{}, apperr.NotFound(msgProjectNotFound)
	}
	if err != nil {
		return domain.Project{}, apperr.Internal("load project", err)
	}
	return p, nil
}

func toResponse(p domain.Project) transport.ProjectResponse {
	milestones := make(map[string]time.Time, len(p.Milestones))
	for stage, at := range p.Milestones {
		milestones[string(stage)] = at
	}
	return transport.ProjectResponse{
		ID:              p.ID,
		ClientID:        p.ClientID,
		Package:         string(p.Package),
		Status:          string(p.Status),
		Progress:        domain.Progress(p.Status),
		Milestones:      milestones,
		Tech:            p.Tech,
		LaunchChecklist: p.LaunchChecklist,
		RepoURL:         p.RepoURL,
		StagingURL:      p.StagingURL,
		InternalNotes:   p.InternalNotes,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
