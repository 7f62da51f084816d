package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

type stubStripeConfig struct{}

func (stubStripeConfig) GetStripeSecretKey() string             { return "sk_test_123" }
func (stubStripeConfig) GetStripeWebhookSecret() string         { return "whsec_test" }
func (stubStripeConfig) GetCarePlanPriceIDs() map[string]string { return nil }
func (stubStripeConfig) GetCheckoutSuccessURL() string          { return "https://portal.test/ok" }
func (stubStripeConfig) GetCheckoutCancelURL() string           { return "https://portal.test/cancel" }

func TestCreateDepositCheckout_SendsDepositInCents(t *testing.T) {
	proposalID := uuid.New()
	var form map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1"}`))
	}))
	defer srv.Close()

	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(srv.URL),
			MaxNetworkRetries: stripe.Int64(0),
		}),
	}
	checkout := NewStripeCheckoutWithBackends(stubStripeConfig{}, backends)

	session, err := checkout.CreateDepositCheckout(context.Background(), DepositCheckout{
		ProposalID:     proposalID,
		ProposalNumber: "PROP-2026-0001",
		Description:    "Standard package",
		Amount:         6000,
		Currency:       "USD",
		CustomerEmail:  "jane@acme.test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_test_1" || session.URL == "" {
		t.Fatalf("unexpected session %+v", session)
	}

	checks := map[string]string{
		"mode":                                   "payment",
		"line_items[0][price_data][unit_amount]": "600000",
		"line_items[0][price_data][currency]":    "usd",
		"metadata[proposalId]":                   proposalID.String(),
		"customer_email":                         "jane@acme.test",
		"invoice_creation[enabled]":              "true",
	}
	for key, want := range checks {
		if form[key] != want {
			t.Fatalf("expected %s=%q, got %q", key, want, form[key])
		}
	}
}
