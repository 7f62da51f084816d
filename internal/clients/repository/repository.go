package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agency_portal_backend/internal/clients/domain"
	"agency_portal_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("client not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, company, contacts, billing_email, plan, stripe_customer_id, source_lead_id, notes, created_at, updated_at`

func scanClient(row pgx.Row) (domain.Client, error) {
	var c domain.Client
	var contacts []byte
	var plan string
	err := row.Scan(&c.ID, &c.Company, &contacts, &c.BillingEmail, &plan, &c.StripeCustomerID, &c.SourceLeadID, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Client{}, ErrNotFound
	}
	if err != nil {
		return domain.Client{}, err
	}
	c.Plan = domain.Plan(plan)
	if !c.Plan.IsValid() {
		return domain.Client{}, fmt.Errorf("client %s has unknown plan %q", c.ID, plan)
	}
	if err := json.Unmarshal(contacts, &c.Contacts); err != nil {
		return domain.Client{}, fmt.Errorf("decode contacts: %w", err)
	}
	return c, nil
}

func (r *Repository) Create(ctx context.Context, q db.Querier, c domain.Client) error {
	contacts, err := json.Marshal(c.Contacts)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO clients (id, company, contacts, billing_email, plan, source_lead_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Company, contacts, c.BillingEmail, string(c.Plan), c.SourceLeadID, c.Notes)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

func (r *Repository) GetByStripeCustomerID(ctx context.Context, customerID string) (domain.Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE stripe_customer_id = $1`, customerID))
}

// LinkStripeCustomer stores the payment customer id unless one is set.
func (r *Repository) LinkStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE clients SET stripe_customer_id = $2, updated_at = now()
		WHERE id = $1 AND stripe_customer_id IS NULL
	`, id, customerID)
	return err
}

func (r *Repository) SetPlan(ctx context.Context, id uuid.UUID, plan domain.Plan) error {
	tag, err := r.pool.Exec(ctx, `UPDATE clients SET plan = $2, updated_at = now() WHERE id = $1`, id, string(plan))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOnPlan returns every client with a care plan.
func (r *Repository) ListOnPlan(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients WHERE plan <> 'none' ORDER BY company`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
