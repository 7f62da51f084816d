// Package payments creates hosted checkout sessions on Stripe.
package payments

import (
	"context"
	"fmt"
	"strings"

	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/money"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// MetadataProposalID links a checkout session back to its proposal.
const MetadataProposalID = "proposalId"

// DepositCheckout is a request to collect a proposal deposit.
type DepositCheckout struct {
	ProposalID     uuid.UUID
	ProposalNumber string
	Description    string
	// Amount is in whole currency units.
	Amount        int64
	Currency      string
	CustomerEmail string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// StripeCheckout creates one-off payment sessions.
type StripeCheckout struct {
	api        *client.API
	successURL string
	cancelURL  string
}

// NewStripeCheckout uses the default Stripe backends.
func NewStripeCheckout(cfg config.StripeConfig) *StripeCheckout {
	return NewStripeCheckoutWithBackends(cfg, nil)
}

// NewStripeCheckoutWithBackends points the client at custom backends.
func NewStripeCheckoutWithBackends(cfg config.StripeConfig, backends *stripe.Backends) *StripeCheckout {
	api := &client.API{}
	api.Init(cfg.GetStripeSecretKey(), backends)
	return &StripeCheckout{
		api:        api,
		successURL: cfg.GetCheckoutSuccessURL(),
		cancelURL:  cfg.GetCheckoutCancelURL(),
	}
}

// CreateDepositCheckout opens a payment session that also issues an invoice,
// so the deposit shows up as invoice.paid once settled.
func (s *StripeCheckout) CreateDepositCheckout(ctx context.Context, req DepositCheckout) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(money.MinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(fmt.Sprintf("Deposit %s", req.ProposalNumber)),
					Description: stripe.String(req.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		InvoiceCreation: &stripe.CheckoutSessionInvoiceCreationParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata(MetadataProposalID, req.ProposalID.String())

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutSession{ID: session.ID, URL: session.URL}, nil
}
