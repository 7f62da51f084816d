package repository

import (
	"context"
	"encoding/json"

	"agency_portal_backend/internal/reports/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert stores the report of a client month. Regenerating a month replaces
// data and insights but keeps the report id.
func (r *Repository) Upsert(ctx context.Context, rep domain.Report) (uuid.UUID, error) {
	data, err := json.Marshal(rep.Data)
	if err != nil {
		return uuid.Nil, err
	}
	insights, err := json.Marshal(rep.Insights)
	if err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err = r.pool.QueryRow(ctx, `
		INSERT INTO monthly_reports (id, client_id, year, month, data, insights)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client_id, year, month)
		DO UPDATE SET data = EXCLUDED.data, insights = EXCLUDED.insights, created_at = now()
		RETURNING id
	`, rep.ID, rep.ClientID, rep.Period.Year, rep.Period.Month, data, insights).Scan(&id)
	return id, err
}

func (r *Repository) SetPDF(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE monthly_reports SET pdf_key = $2 WHERE id = $1`, id, key)
	return err
}
