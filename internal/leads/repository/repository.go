package repository

import (
	"context"
	"errors"
	"time"

	"agency_portal_backend/internal/leads/domain"
	"agency_portal_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("lead not found")
	ErrDuplicate = errors.New("lead with this fingerprint already exists")
	// ErrStatusChanged is returned when a conditional status update matched no row.
	ErrStatusChanged = errors.New("lead status changed concurrently")
)

const activeFingerprintIndex = "leads_active_fingerprint_key"

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
	id, name, company, email, COALESCE(phone, ''), source,
	COALESCE(utm_source, ''), COALESCE(utm_medium, ''), COALESCE(utm_campaign, ''),
	COALESCE(budget_range, ''), COALESCE(project_type, ''), COALESCE(timeline, ''),
	notes, lead_fingerprint, score, status, booked_meeting_id, client_id, project_id,
	converted_at, is_deleted, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var status string
	err := row.Scan(
		&l.ID, &l.Name, &l.Company, &l.Email, &l.Phone, &l.Source,
		&l.UTM.Source, &l.UTM.Medium, &l.UTM.Campaign,
		&l.BudgetRange, &l.ProjectType, &l.Timeline,
		&l.Notes, &l.Fingerprint, &l.Score, &status, &l.BookedMeetingID, &l.ClientID, &l.ProjectID,
		&l.ConvertedAt, &l.IsDeleted, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	l.Status = domain.Status(status)
	if !l.Status.IsValid() {
		return domain.Lead{}, errors.New("lead has unknown status " + status)
	}
	return l, nil
}

// Create inserts a new lead. A concurrent insert of the same active
// fingerprint surfaces as ErrDuplicate.
func (r *Repository) Create(ctx context.Context, l domain.Lead, onCreated db.TxHook) (domain.Lead, error) {
	var created domain.Lead
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO leads (
				id, name, company, email, phone, source, utm_source, utm_medium, utm_campaign,
				budget_range, project_type, timeline, notes, lead_fingerprint, score, status
			)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''),
				NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15, $16)
			RETURNING `+leadColumns,
			l.ID, l.Name, l.Company, l.Email, l.Phone, l.Source, l.UTM.Source, l.UTM.Medium, l.UTM.Campaign,
			l.BudgetRange, l.ProjectType, l.Timeline, l.Notes, l.Fingerprint, l.Score, string(l.Status),
		)
		var err error
		if created, err = scanLead(row); err != nil {
			return err
		}
		if onCreated != nil {
			return onCreated(tx)
		}
		return nil
	})
	if db.IsUniqueViolation(err, activeFingerprintIndex) {
		return domain.Lead{}, ErrDuplicate
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return created, nil
}

// GetByID returns a non-deleted lead.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 AND NOT is_deleted`, id))
}

// GetByIDTx reads a lead and locks it for the rest of the transaction.
func (r *Repository) GetByIDTx(ctx context.Context, q db.Querier, id uuid.UUID) (domain.Lead, error) {
	return scanLead(q.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 AND NOT is_deleted FOR UPDATE`, id))
}

// ExistsActiveFingerprint reports whether a non-deleted lead has the fingerprint.
func (r *Repository) ExistsActiveFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM leads WHERE lead_fingerprint = $1 AND NOT is_deleted)
	`, fingerprint).Scan(&exists)
	return exists, err
}

// UpdateStatus moves a lead from one status to another. The update only
// applies while the lead is still in from.
func (r *Repository) UpdateStatus(ctx context.Context, q db.Querier, id uuid.UUID, from, to domain.Status) error {
	if q == nil {
		q = r.pool
	}
	tag, err := q.Exec(ctx, `
		UPDATE leads SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2 AND NOT is_deleted
	`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

// SetStatus forces a status regardless of the current one. Used by flows that
// already validated the lead state inside a transaction.
func (r *Repository) SetStatus(ctx context.Context, q db.Querier, id uuid.UUID, to domain.Status) error {
	if q == nil {
		q = r.pool
	}
	tag, err := q.Exec(ctx, `UPDATE leads SET status = $2, updated_at = now() WHERE id = $1 AND NOT is_deleted`, id, string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendNotes adds a paragraph to the lead notes.
func (r *Repository) AppendNotes(ctx context.Context, id uuid.UUID, text string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET notes = btrim(notes || E'\n\n' || $2), updated_at = now()
		WHERE id = $1 AND NOT is_deleted
	`, id, text)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBookedMeeting records the discovery meeting on the lead.
func (r *Repository) SetBookedMeeting(ctx context.Context, q db.Querier, id, meetingID uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE leads SET booked_meeting_id = $2, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
	`, id, meetingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkConverted stamps converted_at and the back-references exactly once.
// It reports false when the lead was already converted.
func (r *Repository) MarkConverted(ctx context.Context, q db.Querier, id, clientID, projectID uuid.UUID, at time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE leads
		SET converted_at = $4, client_id = $2, project_id = $3, updated_at = now()
		WHERE id = $1 AND converted_at IS NULL
	`, id, clientID, projectID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SoftDelete hides a lead and frees its fingerprint.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET is_deleted = TRUE, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND NOT is_deleted
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasMeetingBooked reports whether a lead moved on since intake, which
// cancels the follow-up mail.
func (r *Repository) HasMeetingBooked(ctx context.Context, id uuid.UUID) (bool, error) {
	var booked bool
	err := r.pool.QueryRow(ctx, `
		SELECT booked_meeting_id IS NOT NULL OR status NOT IN ('new', 'qualified') OR is_deleted
		FROM leads WHERE id = $1
	`, id).Scan(&booked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	return booked, err
}
