package repository

import (
	"context"
	"errors"
	"time"

	"agency_portal_backend/internal/billing/domain"
	clientdomain "agency_portal_backend/internal/clients/domain"
	"agency_portal_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, client_id, plan, stripe_subscription_id, status, current_period_end, last_invoice_status, created_at`

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var s domain.Subscription
	var plan, status string
	err := row.Scan(&s.ID, &s.ClientID, &plan, &s.StripeSubscriptionID, &status, &s.CurrentPeriodEnd, &s.LastInvoiceStatus, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subscription{}, ErrNotFound
	}
	if err != nil {
		return domain.Subscription{}, err
	}
	s.Plan, s.Status = clientdomain.Plan(plan), domain.SubscriptionStatus(status)
	return s, nil
}

// CreateSubscription inserts a subscription once per external id.
func (r *Repository) CreateSubscription(ctx context.Context, s domain.Subscription, onCreated db.TxHook) (bool, error) {
	return r.execOnce(ctx, onCreated, `
		INSERT INTO subscriptions (id, client_id, plan, stripe_subscription_id, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (stripe_subscription_id) DO NOTHING
	`, s.ID, s.ClientID, string(s.Plan), s.StripeSubscriptionID, string(s.Status), s.CurrentPeriodEnd)
}

func (r *Repository) GetSubscriptionByStripeID(ctx context.Context, stripeID string) (domain.Subscription, error) {
	return scanSubscription(r.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`, stripeID))
}

// UpdateSubscriptionStatus mirrors the external status and period end.
func (r *Repository) UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus, periodEnd *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, current_period_end = COALESCE($3, current_period_end), updated_at = now()
		WHERE id = $1
	`, id, string(status), periodEnd)
	return err
}

// MarkLastInvoicePaid updates the client's active subscription, if any.
func (r *Repository) MarkLastInvoicePaid(ctx context.Context, clientID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subscriptions SET last_invoice_status = 'paid', updated_at = now()
		WHERE id = (
			SELECT id FROM subscriptions
			WHERE client_id = $1 AND status = 'active'
			ORDER BY created_at DESC
			LIMIT 1
		)
	`, clientID)
	return err
}

// ActiveSubscription returns the client's newest active subscription.
func (r *Repository) ActiveSubscription(ctx context.Context, clientID uuid.UUID) (domain.Subscription, error) {
	return scanSubscription(r.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE client_id = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`, clientID))
}
