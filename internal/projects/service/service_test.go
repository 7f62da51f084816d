package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/audit/audittest"
	"agency_portal_backend/internal/events"
	"agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/internal/projects/repository"
	"agency_portal_backend/internal/projects/transport"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type memStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]domain.Project
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, repository.ErrNotFound
	}
	return p, nil
}

func (m *memStore) Advance(_ context.Context, id uuid.UUID, from, to domain.Stage, at time.Time, onAdvanced db.TxHook) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.Status != from {
		return false, nil
	}
	if onAdvanced != nil {
		if err := onAdvanced(nil); err != nil {
			return false, err
		}
	}
	p.Status = to
	if _, set := p.Milestones[to]; !set {
		p.Milestones[to] = at
	}
	m.projects[id] = p
	return true, nil
}

func (m *memStore) MergeChecklist(_ context.Context, id uuid.UUID, items map[string]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range items {
		p.LaunchChecklist[k] = v
	}
	return nil
}

func (m *memStore) SetInfrastructure(_ context.Context, id uuid.UUID, repoURL, stagingURL string, onAssigned db.TxHook) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projects[id]
	if p.RepoURL != nil {
		return false, nil
	}
	if onAssigned != nil {
		if err := onAssigned(nil); err != nil {
			return false, err
		}
	}
	p.RepoURL, p.StagingURL = &repoURL, &stagingURL
	m.projects[id] = p
	return true, nil
}

type fixture struct {
	svc      *Service
	store    *memStore
	recorder *audittest.Recorder
	project  domain.Project
}

func newFixture(status domain.Stage) *fixture {
	project := domain.Project{
		ID:              uuid.New(),
		ClientID:        uuid.New(),
		Package:         domain.PackageStandard,
		Status:          status,
		Milestones:      map[domain.Stage]time.Time{domain.StageIntake: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		LaunchChecklist: map[string]bool{},
	}
	store := &memStore{projects: map[uuid.UUID]domain.Project{project.ID: project}}
	recorder := &audittest.Recorder{}
	log := logger.NewNop()
	provisioner := NewProvisioner(store, recorder, "agency", "vercel.app", log)
	svc := New(store, provisioner, recorder, events.NewInMemoryBus(log), log)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, store: store, recorder: recorder, project: project}
}

func TestAdvance_StampsMilestoneOnce(t *testing.T) {
	f := newFixture(domain.StageIntake)
	ctx := context.Background()

	changed, err := f.svc.Advance(ctx, f.project.ID, domain.StageIntake)
	if err != nil || !changed {
		t.Fatalf("expected first advance to change the project, got changed=%v err=%v", changed, err)
	}

	changed, err = f.svc.Advance(ctx, f.project.ID, domain.StageIntake)
	if err != nil {
		t.Fatalf("unexpected error on repeat: %v", err)
	}
	if changed {
		t.Fatal("expected repeated advance to be a no-op")
	}

	p := f.store.projects[f.project.ID]
	if p.Status != domain.StageCopy {
		t.Fatalf("expected copy, got %s", p.Status)
	}
	if got := p.Milestones[domain.StageCopy]; !got.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected copy milestone %v", got)
	}
	if n := f.recorder.Count(audit.ActionProjectStageAdvanced); n != 1 {
		t.Fatalf("expected one stage audit, got %d", n)
	}
}

func TestAdvance_FromClosedIsRejected(t *testing.T) {
	f := newFixture(domain.StageClosed)
	_, err := f.svc.Advance(context.Background(), f.project.ID, domain.StageClosed)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdvance_UnknownProjectIsNotFound(t *testing.T) {
	f := newFixture(domain.StageIntake)
	_, err := f.svc.Advance(context.Background(), uuid.New(), domain.StageIntake)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetStatus_RejectsSkipAndBackward(t *testing.T) {
	f := newFixture(domain.StageDesign)
	ctx := context.Background()

	for _, to := range []domain.Stage{domain.StageQA, domain.StageCopy, domain.StageDesign} {
		_, err := f.svc.SetStatus(ctx, f.project.ID, transport.UpdateProjectStatusRequest{Status: string(to)})
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("expected validation error for %s, got %v", to, err)
		}
	}

	resp, err := f.svc.SetStatus(ctx, f.project.ID, transport.UpdateProjectStatusRequest{Status: string(domain.StageBuild)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "build" || resp.Progress != 57 {
		t.Fatalf("expected build at 57%%, got %s at %d%%", resp.Status, resp.Progress)
	}
}

func TestStartAfterDeposit_ProvisionsOnce(t *testing.T) {
	f := newFixture(domain.StageIntake)
	ctx := context.Background()

	started, err := f.svc.StartAfterDeposit(ctx, f.project.ID)
	if err != nil || !started {
		t.Fatalf("expected project to start, got started=%v err=%v", started, err)
	}
	started, err = f.svc.StartAfterDeposit(ctx, f.project.ID)
	if err != nil || started {
		t.Fatalf("expected second start to be a no-op, got started=%v err=%v", started, err)
	}

	p := f.store.projects[f.project.ID]
	wantRepo := "https://github.com/agency/client-" + f.project.ClientID.String()
	wantStaging := "https://client-" + f.project.ClientID.String() + "-staging.vercel.app"
	if p.RepoURL == nil || *p.RepoURL != wantRepo {
		t.Fatalf("expected repo %s, got %v", wantRepo, p.RepoURL)
	}
	if p.StagingURL == nil || *p.StagingURL != wantStaging {
		t.Fatalf("expected staging %s, got %v", wantStaging, p.StagingURL)
	}
	if n := f.recorder.Count(audit.ActionInfrastructureProvisioned); n != 1 {
		t.Fatalf("expected one provisioning audit, got %d", n)
	}
}

func TestStartAfterDeposit_RetryAfterFailedAuditCompletesStart(t *testing.T) {
	f := newFixture(domain.StageIntake)
	ctx := context.Background()

	f.recorder.Err = errors.New("audit unavailable")
	if _, err := f.svc.StartAfterDeposit(ctx, f.project.ID); err == nil {
		t.Fatal("expected first delivery to fail")
	}
	if p := f.store.projects[f.project.ID]; p.Status != domain.StageIntake {
		t.Fatalf("expected failed audit to roll back the stage, got %s", p.Status)
	}

	f.recorder.Err = nil
	started, err := f.svc.StartAfterDeposit(ctx, f.project.ID)
	if err != nil || !started {
		t.Fatalf("expected retry to start the project, got started=%v err=%v", started, err)
	}

	p := f.store.projects[f.project.ID]
	if p.Status != domain.StageCopy || p.RepoURL == nil {
		t.Fatalf("expected copy with a repository, got %s repo=%v", p.Status, p.RepoURL)
	}
	if n := f.recorder.Count(audit.ActionProjectStageAdvanced); n != 1 {
		t.Fatalf("expected one stage audit, got %d", n)
	}
	if n := f.recorder.Count(audit.ActionInfrastructureProvisioned); n != 1 {
		t.Fatalf("expected one provisioning audit, got %d", n)
	}
}

func TestStartAfterDeposit_ProvisionsStartedProjectWithoutRepository(t *testing.T) {
	f := newFixture(domain.StageCopy)

	started, err := f.svc.StartAfterDeposit(context.Background(), f.project.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started {
		t.Fatal("expected no stage change for a started project")
	}
	if p := f.store.projects[f.project.ID]; p.RepoURL == nil {
		t.Fatal("expected interrupted start to be provisioned")
	}
	if n := f.recorder.Count(audit.ActionInfrastructureProvisioned); n != 1 {
		t.Fatalf("expected one provisioning audit, got %d", n)
	}
}

func TestUpdateChecklist_Merges(t *testing.T) {
	f := newFixture(domain.StageQA)
	f.store.projects[f.project.ID].LaunchChecklist["dns"] = true

	resp, err := f.svc.UpdateChecklist(context.Background(), f.project.ID, transport.UpdateChecklistRequest{Items: map[string]bool{"ssl": true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.LaunchChecklist["dns"] || !resp.LaunchChecklist["ssl"] {
		t.Fatalf("expected both items, got %v", resp.LaunchChecklist)
	}
}
