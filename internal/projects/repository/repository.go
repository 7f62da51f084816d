package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("project not found")

// milestoneColumns maps each stage to the column stamped when it is entered.
var milestoneColumns = map[domain.Stage]string{
	domain.StageIntake: "intake_at",
	domain.StageCopy:   "copy_at",
	domain.StageDesign: "design_at",
	domain.StageBuild:  "build_at",
	domain.StageQA:     "qa_at",
	domain.StageReview: "review_at",
	domain.StageLive:   "live_at",
	domain.StageClosed: "closed_at",
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectColumns = `
	id, client_id, package, status,
	intake_at, copy_at, design_at, build_at, qa_at, review_at, live_at, closed_at,
	tech, launch_checklist, repo_url, staging_url, internal_notes, created_at, updated_at`

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	var pkg, status string
	var checklist []byte
	stamps := make([]*time.Time, len(domain.Stages))
	dest := []any{&p.ID, &p.ClientID, &pkg, &status}
	for i := range stamps {
		dest = append(dest, &stamps[i])
	}
	dest = append(dest, &p.Tech, &checklist, &p.RepoURL, &p.StagingURL, &p.InternalNotes, &p.CreatedAt, &p.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Project{}, ErrNotFound
		}
		return domain.Project{}, err
	}

	p.Package = domain.Package(pkg)
	p.Status = domain.Stage(status)
	if !p.Status.IsValid() || !p.Package.IsValid() {
		return domain.Project{}, fmt.Errorf("project %s has invalid status %q or package %q", p.ID, status, pkg)
	}
	p.Milestones = make(map[domain.Stage]time.Time)
	for i, stage := range domain.Stages {
		if stamps[i] != nil {
			p.Milestones[stage] = *stamps[i]
		}
	}
	p.LaunchChecklist = make(map[string]bool)
	if len(checklist) > 0 {
		if err := json.Unmarshal(checklist, &p.LaunchChecklist); err != nil {
			return domain.Project{}, fmt.Errorf("decode launch checklist: %w", err)
		}
	}
	return p, nil
}

// Create inserts a project in intake with its intake milestone stamped.
func (r *Repository) Create(ctx context.Context, q db.Querier, p domain.Project) error {
	_, err := q.Exec(ctx, `
		INSERT INTO projects (id, client_id, package, status, intake_at, tech, launch_checklist, internal_notes)
		VALUES ($1, $2, $3, 'intake', $4, $5, '{}'::jsonb, $6)
	`, p.ID, p.ClientID, string(p.Package), p.Milestones[domain.StageIntake], p.Tech, p.InternalNotes)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Project, error) {
	return scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// ListByClient returns a client's projects, newest first.
func (r *Repository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// Advance moves a project from -> to and stamps the milestone of to, but only
// while the project is still in from. A milestone that is already set keeps
// its original time. Reports whether the row changed.
func (r *Repository) Advance(ctx context.Context, id uuid.UUID, from, to domain.Stage, at time.Time, onAdvanced db.TxHook) (bool, error) {
	column, ok := milestoneColumns[to]
	if !ok {
		return false, fmt.Errorf("unknown stage %q", to)
	}
	var changed bool
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE projects
			SET status = $3, `+column+` = COALESCE(`+column+`, $4), updated_at = now()
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), at)
		if err != nil {
			return err
		}
		changed = tag.RowsAffected() == 1
		if changed && onAdvanced != nil {
			return onAdvanced(tx)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// MergeChecklist sets the given launch checklist items, keeping the others.
func (r *Repository) MergeChecklist(ctx context.Context, id uuid.UUID, items map[string]bool) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE projects SET launch_checklist = launch_checklist || $2::jsonb, updated_at = now()
		WHERE id = $1
	`, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetInfrastructure records repo and staging URLs once.
// Reports false when they were already assigned.
func (r *Repository) SetInfrastructure(ctx context.Context, id uuid.UUID, repoURL, stagingURL string, onAssigned db.TxHook) (bool, error) {
	var assigned bool
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE projects SET repo_url = $2, staging_url = $3, updated_at = now()
			WHERE id = $1 AND repo_url IS NULL
		`, id, repoURL, stagingURL)
		if err != nil {
			return err
		}
		assigned = tag.RowsAffected() == 1
		if assigned && onAssigned != nil {
			return onAssigned(tx)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return assigned, nil
}

// ListMissingMilestones returns projects whose current stage has no milestone.
func (r *Repository) ListMissingMilestones(ctx context.Context) ([]uuid.UUID, error) {
	var clauses string
	for i, stage := range domain.Stages {
		if i > 0 {
			clauses += " OR "
		}
		clauses += fmt.Sprintf("(status = '%s' AND %s IS NULL)", stage, milestoneColumns[stage])
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM projects WHERE `+clauses)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
