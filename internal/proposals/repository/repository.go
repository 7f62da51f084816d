package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agency_portal_backend/internal/proposals/domain"
	projectdomain "agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("proposal not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const proposalColumns = `
	id, proposal_number, lead_id, client_id, package, price, currency, urgent_delivery,
	custom_requirements, status, version, content, pdf_key, checkout_session_id, checkout_url,
	sent_at, signed_at, declined_at, created_at, updated_at`

func scanProposal(row pgx.Row) (domain.Proposal, error) {
	var p domain.Proposal
	var pkg, status string
	var content []byte
	err := row.Scan(
		&p.ID, &p.Number, &p.LeadID, &p.ClientID, &pkg, &p.Price, &p.Currency, &p.UrgentDelivery,
		&p.CustomRequirements, &status, &p.Version, &content, &p.PDFKey, &p.CheckoutSessionID, &p.CheckoutURL,
		&p.SentAt, &p.SignedAt, &p.DeclinedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Proposal{}, ErrNotFound
	}
	if err != nil {
		return domain.Proposal{}, err
	}
	p.Package, p.Status = projectdomain.Package(pkg), domain.Status(status)
	if !p.Package.IsValid() || !p.Status.IsValid() {
		return domain.Proposal{}, fmt.Errorf("proposal %s has invalid package %q or status %q", p.ID, pkg, status)
	}
	if err := json.Unmarshal(content, &p.Content); err != nil {
		return domain.Proposal{}, fmt.Errorf("decode proposal content: %w", err)
	}
	return p, nil
}

// NextSequence atomically allocates the next proposal sequence for year.
// The first allocation of a year returns 1.
func (r *Repository) NextSequence(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO proposal_counters (year, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_sequence = proposal_counters.last_sequence + 1
		RETURNING last_sequence
	`, year).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate proposal number: %w", err)
	}
	return seq, nil
}

func (r *Repository) Create(ctx context.Context, p domain.Proposal) error {
	content, err := json.Marshal(p.Content)
	if err != nil {
		return fmt.Errorf("encode proposal content: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO proposals (
			id, proposal_number, lead_id, client_id, package, price, currency,
			urgent_delivery, custom_requirements, status, version, content
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.Number, p.LeadID, p.ClientID, string(p.Package), p.Price, p.Currency,
		p.UrgentDelivery, p.CustomRequirements, string(p.Status), p.Version, content)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Proposal, error) {
	return scanProposal(r.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
}

// GetByIDTx reads a proposal and locks it for the rest of the transaction.
func (r *Repository) GetByIDTx(ctx context.Context, q db.Querier, id uuid.UUID) (domain.Proposal, error) {
	return scanProposal(q.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE`, id))
}

func (r *Repository) SetPDF(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE proposals SET pdf_key = $2, updated_at = now() WHERE id = $1`, id, key)
	return err
}

// MarkSent moves a draft to sent with its checkout session. Reports false
// when the proposal is no longer a draft.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sessionID, checkoutURL string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE proposals
		SET status = 'sent', checkout_session_id = $2, checkout_url = $3, sent_at = $4, updated_at = now()
		WHERE id = $1 AND status = 'draft'
	`, id, sessionID, checkoutURL, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Decline reports false when the proposal is no longer open.
func (r *Repository) Decline(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE proposals SET status = 'declined', declined_at = $2, updated_at = now()
		WHERE id = $1 AND status IN ('draft', 'sent')
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Sign reports false when the proposal is no longer open.
func (r *Repository) Sign(ctx context.Context, q db.Querier, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE proposals SET status = 'signed', signed_at = $2, updated_at = now()
		WHERE id = $1 AND status IN ('draft', 'sent')
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
