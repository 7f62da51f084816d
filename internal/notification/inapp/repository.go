package inapp

import (
	"context"
	"time"

	"agency_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate     = "notification.inapp.repository.create"
	opListRecent = "notification.inapp.repository.list_recent"
	opMarkSent   = "notification.inapp.repository.mark_sent"
)

// Types of staff notification.
const (
	TypeNewLead          = "new_lead"
	TypeHighValueLead    = "high_value_lead"
	TypeProposalAccepted = "proposal_accepted"
)

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	LeadID    *uuid.UUID `json:"leadId,omitempty"`
	Message   string     `json:"message"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CreateParams struct {
	Type    string
	LeadID  *uuid.UUID
	Message string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if p.Type == "" || p.Message == "" {
		return Notification{}, apperr.Validation("type and message are required").WithOp(opCreate)
	}

	var n Notification
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, type, lead_id, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, type, lead_id, message, sent_at, created_at
	`, uuid.New(), p.Type, p.LeadID, p.Message).Scan(&n.ID, &n.Type, &n.LeadID, &n.Message, &n.SentAt, &n.CreatedAt)
	if err != nil {
		return Notification{}, apperr.Internal("create notification", err).WithOp(opCreate)
	}
	return n, nil
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, lead_id, message, sent_at, created_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperr.Internal("list notifications", err).WithOp(opListRecent)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.LeadID, &n.Message, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, apperr.Internal("scan notification", err).WithOp(opListRecent)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list notifications", err).WithOp(opListRecent)
	}
	return items, nil
}

// MarkSent records that the notification also went out by mail.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.pool.Exec(ctx, `UPDATE notifications SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL`, id, at); err != nil {
		return apperr.Internal("mark notification sent", err).WithOp(opMarkSent)
	}
	return nil
}
