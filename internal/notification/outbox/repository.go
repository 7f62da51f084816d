// Package outbox stores mails that are sent later, such as the intake
// follow-up.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TypeFollowUp is the mail sent to a lead that has not booked a call.
const TypeFollowUp = "follow_up"

var ErrNotFound = errors.New("scheduled email not found")

type Record struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	Type         string
	Email        string
	Name         string
	ScheduledFor time.Time
	SentAt       *time.Time
	SkippedAt    *time.Time
	CreatedAt    time.Time
}

// Done reports whether the mail was sent or skipped.
func (r Record) Done() bool {
	return r.SentAt != nil || r.SkippedAt != nil
}

type InsertParams struct {
	LeadID       uuid.UUID
	Type         string
	Email        string
	Name         string
	ScheduledFor time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, error) {
	if p.LeadID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("leadId is required")
	}
	if p.Type == "" {
		return uuid.Nil, fmt.Errorf("type is required")
	}
	if p.ScheduledFor.IsZero() {
		p.ScheduledFor = time.Now().UTC()
	}

	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_emails (id, lead_id, type, email, name, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, p.LeadID, p.Type, p.Email, p.Name, p.ScheduledFor)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert scheduled email: %w", err)
	}
	return id, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, type, email, name, scheduled_for, sent_at, skipped_at, created_at
		FROM scheduled_emails
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.LeadID, &rec.Type, &rec.Email, &rec.Name, &rec.ScheduledFor, &rec.SentAt, &rec.SkippedAt, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get scheduled email: %w", err)
	}
	return rec, nil
}

// ListDue returns unsent mails scheduled before the cutoff, oldest first.
func (r *Repository) ListDue(ctx context.Context, before time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, type, email, name, scheduled_for, sent_at, skipped_at, created_at
		FROM scheduled_emails
		WHERE sent_at IS NULL AND skipped_at IS NULL AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled emails: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.LeadID, &rec.Type, &rec.Email, &rec.Name, &rec.ScheduledFor, &rec.SentAt, &rec.SkippedAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled email: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkSent stamps sent_at once. It returns false when the mail was already
// sent or skipped.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.finish(ctx, "sent_at", id, at)
}

// MarkSkipped stamps skipped_at once.
func (r *Repository) MarkSkipped(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.finish(ctx, "skipped_at", id, at)
}

func (r *Repository) finish(ctx context.Context, column string, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_emails SET `+column+` = $2
		WHERE id = $1 AND sent_at IS NULL AND skipped_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("update scheduled email %s: %w", column, err)
	}
	return tag.RowsAffected() == 1, nil
}
