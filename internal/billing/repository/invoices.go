package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agency_portal_backend/internal/billing/domain"
	"agency_portal_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("billing record not found")

const depositPerProposalIndex = "invoices_proposal_deposit_key"

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, client_id, project_id, proposal_id, type, status, amount, currency, stripe_invoice_id, due_date, paid_at, created_at`

func scanInvoice(row pgx.Row) (domain.Invoice, error) {
	var inv domain.Invoice
	var typ, status string
	err := row.Scan(&inv.ID, &inv.ClientID, &inv.ProjectID, &inv.ProposalID, &typ, &status, &inv.Amount, &inv.Currency,
		&inv.StripeInvoiceID, &inv.DueDate, &inv.PaidAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Invoice{}, ErrNotFound
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Type, inv.Status = domain.InvoiceType(typ), domain.InvoiceStatus(status)
	if !inv.Type.IsValid() || !inv.Status.IsValid() {
		return domain.Invoice{}, fmt.Errorf("invoice %s has invalid type %q or status %q", inv.ID, typ, status)
	}
	return inv, nil
}

// CreateDeposit inserts the deposit invoice of a proposal. Reports false when
// the proposal already has one.
func (r *Repository) CreateDeposit(ctx context.Context, q db.Querier, inv domain.Invoice) (bool, error) {
	_, err := q.Exec(ctx, `
		INSERT INTO invoices (id, client_id, project_id, proposal_id, type, status, amount, currency, stripe_invoice_id, paid_at)
		VALUES ($1, $2, $3, $4, 'deposit', $5, $6, $7, NULLIF($8, ''), $9)
	`, inv.ID, inv.ClientID, inv.ProjectID, inv.ProposalID, string(inv.Status), inv.Amount, inv.Currency, deref(inv.StripeInvoiceID), inv.PaidAt)
	if db.IsUniqueViolation(err, depositPerProposalIndex) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) GetInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (domain.Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE stripe_invoice_id = $1`, stripeInvoiceID))
}

// MarkInvoicePaid reports false when the invoice was already paid.
func (r *Repository) MarkInvoicePaid(ctx context.Context, id uuid.UUID, at time.Time, onPaid db.TxHook) (bool, error) {
	return r.execOnce(ctx, onPaid, `
		UPDATE invoices SET status = 'paid', paid_at = COALESCE(paid_at, $2), updated_at = now()
		WHERE id = $1 AND status <> 'paid'
	`, id, at)
}

// MarkInvoiceOverdue leaves paid invoices untouched.
func (r *Repository) MarkInvoiceOverdue(ctx context.Context, id uuid.UUID, onOverdue db.TxHook) (bool, error) {
	return r.execOnce(ctx, onOverdue, `
		UPDATE invoices SET status = 'overdue', updated_at = now()
		WHERE id = $1 AND status NOT IN ('paid', 'overdue')
	`, id)
}

// execOnce runs a conditional write and, when it changed a row, hook in the
// same transaction.
func (r *Repository) execOnce(ctx context.Context, hook db.TxHook, sql string, args ...any) (bool, error) {
	var changed bool
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		changed = tag.RowsAffected() == 1
		if changed && hook != nil {
			return hook(tx)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// SumPaidBetween totals a client's paid invoices in [from, to).
func (r *Repository) SumPaidBetween(ctx context.Context, clientID uuid.UUID, from, to time.Time) (int64, int, error) {
	var total int64
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0), count(*)
		FROM invoices
		WHERE client_id = $1 AND status = 'paid' AND paid_at >= $2 AND paid_at < $3
	`, clientID, from, to).Scan(&total, &count)
	return total, count, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
