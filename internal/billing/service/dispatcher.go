package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"agency_portal_backend/internal/adapters/payments"
	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/billing/domain"
	"agency_portal_backend/internal/billing/repository"
	clientdomain "agency_portal_backend/internal/clients/domain"
	clientrepo "agency_portal_backend/internal/clients/repository"
	proposalservice "agency_portal_backend/internal/proposals/service"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// Payment event types the dispatcher acts on.
const (
	EventInvoicePaid             = "invoice.paid"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventCheckoutCompleted       = "checkout.session.completed"
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
)

// Outcomes reported in the payment event log.
const (
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeMalformed = "malformed"
	outcomeNoRecord  = "no_local_record"
	outcomeApplied   = "applied"
)

// Store is the billing persistence the dispatcher needs.
type Store interface {
	ClaimEvent(ctx context.Context, eventID, eventType string) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
	GetInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (domain.Invoice, error)
	MarkInvoicePaid(ctx context.Context, id uuid.UUID, at time.Time, onPaid db.TxHook) (bool, error)
	MarkInvoiceOverdue(ctx context.Context, id uuid.UUID, onOverdue db.TxHook) (bool, error)
	CreateSubscription(ctx context.Context, s domain.Subscription, onCreated db.TxHook) (bool, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeID string) (domain.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus, periodEnd *time.Time) error
	MarkLastInvoicePaid(ctx context.Context, clientID uuid.UUID) error
}

type ClientStore interface {
	GetByStripeCustomerID(ctx context.Context, customerID string) (clientdomain.Client, error)
	LinkStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error
	SetPlan(ctx context.Context, id uuid.UUID, plan clientdomain.Plan) error
}

type ProjectStarter interface {
	StartAfterDeposit(ctx context.Context, id uuid.UUID) (bool, error)
}

type ProposalAcceptor interface {
	Accept(ctx context.Context, id uuid.UUID, stripeInvoiceID string) (proposalservice.AcceptResult, error)
}

// Dispatcher applies verified payment events exactly once per event id.
type Dispatcher struct {
	store       Store
	clients     ClientStore
	projects    ProjectStarter
	proposals   ProposalAcceptor
	audit       audit.Recorder
	priceToPlan map[string]string
	now         func() time.Time
	log         *logger.Logger
}

func NewDispatcher(store Store, clients ClientStore, projects ProjectStarter, proposals ProposalAcceptor, recorder audit.Recorder, priceToPlan map[string]string, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:       store,
		clients:     clients,
		projects:    projects,
		proposals:   proposals,
		audit:       recorder,
		priceToPlan: priceToPlan,
		now:         time.Now,
		log:         log,
	}
}

// Process claims the event id and routes the event by type. A redelivered
// id is acknowledged without effect. When a handler fails the claim is
// released, so the platform's retry runs it again.
func (d *Dispatcher) Process(ctx context.Context, event stripe.Event) error {
	eventType := string(event.Type)
	claimed, err := d.store.ClaimEvent(ctx, event.ID, eventType)
	if err != nil {
		return apperr.Internal("claim payment event", err)
	}
	if !claimed {
		d.log.PaymentEvent(event.ID, eventType, outcomeDuplicate)
		return nil
	}

	outcome, err := d.dispatch(ctx, event)
	if err != nil {
		if relErr := d.store.ReleaseEvent(ctx, event.ID); relErr != nil {
			d.log.WithContext(ctx).Error("failed to release payment event", "eventId", event.ID, "error", relErr)
		}
		d.log.WithContext(ctx).Error("payment event failed", "eventId", event.ID, "type", eventType, "error", err)
		return err
	}

	d.log.PaymentEvent(event.ID, eventType, outcome)
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event stripe.Event) (string, error) {
	switch string(event.Type) {
	case EventInvoicePaid, EventInvoicePaymentSucceeded:
		var inv stripe.Invoice
		if !d.decode(ctx, event, &inv) {
			return outcomeMalformed, nil
		}
		return d.invoicePaid(ctx, &inv)
	case EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if !d.decode(ctx, event, &inv) {
			return outcomeMalformed, nil
		}
		return d.invoicePaymentFailed(ctx, &inv)
	case EventSubscriptionCreated:
		var sub stripe.Subscription
		if !d.decode(ctx, event, &sub) {
			return outcomeMalformed, nil
		}
		return d.subscriptionCreated(ctx, &sub)
	case EventSubscriptionUpdated:
		var sub stripe.Subscription
		if !d.decode(ctx, event, &sub) {
			return outcomeMalformed, nil
		}
		return d.subscriptionUpdated(ctx, &sub)
	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if !d.decode(ctx, event, &sub) {
			return outcomeMalformed, nil
		}
		return d.subscriptionDeleted(ctx, &sub)
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if !d.decode(ctx, event, &session) {
			return outcomeMalformed, nil
		}
		return d.checkoutCompleted(ctx, &session)
	case EventPaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if !d.decode(ctx, event, &pi) {
			return outcomeMalformed, nil
		}
		return d.paymentSucceeded(ctx, &pi)
	default:
		d.log.WithContext(ctx).Info("unhandled payment event type", "eventId", event.ID, "type", string(event.Type))
		return outcomeIgnored, nil
	}
}

func (d *Dispatcher) decode(ctx context.Context, event stripe.Event, out any) bool {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		d.log.WithContext(ctx).Warn("payment event without data", "eventId", event.ID)
		return false
	}
	if err := json.Unmarshal(event.Data.Raw, out); err != nil {
		d.log.WithContext(ctx).Warn("payment event data unreadable", "eventId", event.ID, "error", err)
		return false
	}
	return true
}

func (d *Dispatcher) invoicePaid(ctx context.Context, inv *stripe.Invoice) (string, error) {
	local, err := d.store.GetInvoiceByStripeID(ctx, inv.ID)
	if errors.Is(err, repository.ErrNotFound) {
		d.log.WithContext(ctx).Info("paid invoice has no local record", "stripeInvoiceId", inv.ID)
		return outcomeNoRecord, nil
	}
	if err != nil {
		return "", apperr.Internal("load invoice", err)
	}

	// Audits commit with the status change.
	_, err = d.store.MarkInvoicePaid(ctx, local.ID, d.now().UTC(), func(q db.Querier) error {
		if local.Type == domain.InvoiceMilestone {
			if err := d.audit.RecordTx(ctx, q, audit.Entry{
				Action:    audit.ActionMilestonePaymentReceived,
				Payload:   map[string]any{"invoiceId": local.ID.String(), "amount": local.Amount},
				ClientID:  &local.ClientID,
				ProjectID: local.ProjectID,
			}); err != nil {
				return err
			}
		}
		return d.audit.RecordTx(ctx, q, audit.Entry{
			Action: audit.ActionInvoicePaid,
			Payload: map[string]any{
				"invoiceId":       local.ID.String(),
				"stripeInvoiceId": inv.ID,
				"type":            string(local.Type),
				"amount":          local.Amount,
			},
			ClientID:  &local.ClientID,
			ProjectID: local.ProjectID,
		})
	})
	if err != nil {
		return "", apperr.Internal("mark invoice paid", err)
	}

	switch local.Type {
	case domain.InvoiceDeposit:
		if local.ProjectID != nil {
			if err := d.startProject(ctx, *local.ProjectID); err != nil {
				return "", err
			}
		}
	case domain.InvoiceCare:
		if err := d.store.MarkLastInvoicePaid(ctx, local.ClientID); err != nil {
			return "", apperr.Internal("update subscription invoice status", err)
		}
	}
	return outcomeApplied, nil
}

// startProject advances a paid project out of intake. A project that is
// gone is treated like any other missing webhook target.
func (d *Dispatcher) startProject(ctx context.Context, projectID uuid.UUID) error {
	advanced, err := d.projects.StartAfterDeposit(ctx, projectID)
	if apperr.Is(err, apperr.KindNotFound) {
		d.log.WithContext(ctx).Info("deposit project not found", "projectId", projectID)
		return nil
	}
	if err != nil {
		return err
	}
	if advanced {
		d.log.WithContext(ctx).Info("project started after deposit", "projectId", projectID)
	}
	return nil
}

func (d *Dispatcher) invoicePaymentFailed(ctx context.Context, inv *stripe.Invoice) (string, error) {
	local, err := d.store.GetInvoiceByStripeID(ctx, inv.ID)
	if errors.Is(err, repository.ErrNotFound) {
		d.log.WithContext(ctx).Info("failed invoice has no local record", "stripeInvoiceId", inv.ID)
		return outcomeNoRecord, nil
	}
	if err != nil {
		return "", apperr.Internal("load invoice", err)
	}

	_, err = d.store.MarkInvoiceOverdue(ctx, local.ID, func(q db.Querier) error {
		return d.audit.RecordTx(ctx, q, audit.Entry{
			Action:    audit.ActionInvoicePaymentFailed,
			Payload:   map[string]any{"invoiceId": local.ID.String(), "stripeInvoiceId": inv.ID},
			ClientID:  &local.ClientID,
			ProjectID: local.ProjectID,
		})
	})
	if err != nil {
		return "", apperr.Internal("mark invoice overdue", err)
	}
	return outcomeApplied, nil
}

func (d *Dispatcher) subscriptionCreated(ctx context.Context, sub *stripe.Subscription) (string, error) {
	if sub.Customer == nil || sub.Customer.ID == "" {
		d.log.WithContext(ctx).Warn("subscription without customer", "subscriptionId", sub.ID)
		return outcomeMalformed, nil
	}
	client, err := d.clients.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if errors.Is(err, clientrepo.ErrNotFound) {
		d.log.WithContext(ctx).Info("subscription customer has no client", "customerId", sub.Customer.ID)
		return outcomeNoRecord, nil
	}
	if err != nil {
		return "", apperr.Internal("load client", err)
	}

	plan := domain.PlanForPrice(d.priceToPlan, firstPriceID(sub))
	_, err = d.store.CreateSubscription(ctx, domain.Subscription{
		ID:                   uuid.New(),
		ClientID:             client.ID,
		Plan:                 plan,
		StripeSubscriptionID: sub.ID,
		Status:               domain.SubscriptionActive,
		CurrentPeriodEnd:     periodEnd(sub),
	}, func(q db.Querier) error {
		return d.audit.RecordTx(ctx, q, audit.Entry{
			Action:   audit.ActionSubscriptionCreated,
			Payload:  map[string]any{"subscriptionId": sub.ID, "plan": string(plan)},
			ClientID: &client.ID,
		})
	})
	if err != nil {
		return "", apperr.Internal("create subscription", err)
	}
	if err := d.clients.SetPlan(ctx, client.ID, plan); err != nil {
		return "", apperr.Internal("set client plan", err)
	}

	return outcomeApplied, nil
}

func (d *Dispatcher) subscriptionUpdated(ctx context.Context, sub *stripe.Subscription) (string, error) {
	local, err := d.store.GetSubscriptionByStripeID(ctx, sub.ID)
	if errors.Is(err, repository.ErrNotFound) {
		d.log.WithContext(ctx).Info("updated subscription has no local record", "subscriptionId", sub.ID)
		return outcomeNoRecord, nil
	}
	if err != nil {
		return "", apperr.Internal("load subscription", err)
	}

	status := domain.MirrorStatus(string(sub.Status))
	if err := d.store.UpdateSubscriptionStatus(ctx, local.ID, status, periodEnd(sub)); err != nil {
		return "", apperr.Internal("update subscription", err)
	}
	if err := d.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionSubscriptionUpdated,
		Payload:  map[string]any{"subscriptionId": sub.ID, "status": string(status)},
		ClientID: &local.ClientID,
	}); err != nil {
		return "", apperr.Internal("record subscription updated", err)
	}
	return outcomeApplied, nil
}

func (d *Dispatcher) subscriptionDeleted(ctx context.Context, sub *stripe.Subscription) (string, error) {
	local, err := d.store.GetSubscriptionByStripeID(ctx, sub.ID)
	if errors.Is(err, repository.ErrNotFound) {
		d.log.WithContext(ctx).Info("deleted subscription has no local record", "subscriptionId", sub.ID)
		return outcomeNoRecord, nil
	}
	if err != nil {
		return "", apperr.Internal("load subscription", err)
	}

	if err := d.store.UpdateSubscriptionStatus(ctx, local.ID, domain.SubscriptionCanceled, nil); err != nil {
		return "", apperr.Internal("cancel subscription", err)
	}
	if err := d.clients.SetPlan(ctx, local.ClientID, clientdomain.PlanNone); err != nil && !errors.Is(err, clientrepo.ErrNotFound) {
		return "", apperr.Internal("reset client plan", err)
	}
	if err := d.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionSubscriptionCanceled,
		Payload:  map[string]any{"subscriptionId": sub.ID},
		ClientID: &local.ClientID,
	}); err != nil {
		return "", apperr.Internal("record subscription canceled", err)
	}
	return outcomeApplied, nil
}

// checkoutCompleted signs the proposal named in the session metadata. The
// deposit is paid at this point, so the project leaves intake as well.
func (d *Dispatcher) checkoutCompleted(ctx context.Context, session *stripe.CheckoutSession) (string, error) {
	ref := session.Metadata[payments.MetadataProposalID]
	if ref == "" {
		d.log.WithContext(ctx).Info("checkout without proposal reference", "sessionId", session.ID)
		return outcomeIgnored, nil
	}
	proposalID, err := uuid.Parse(ref)
	if err != nil {
		d.log.WithContext(ctx).Warn("checkout has invalid proposal reference", "sessionId", session.ID, "ref", ref)
		return outcomeMalformed, nil
	}

	var invoiceID string
	if session.Invoice != nil {
		invoiceID = session.Invoice.ID
	}

	result, err := d.proposals.Accept(ctx, proposalID, invoiceID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		d.log.WithContext(ctx).Info("checkout proposal not found", "proposalId", proposalID)
		return outcomeNoRecord, nil
	case apperr.Is(err, apperr.KindValidation):
		d.log.WithContext(ctx).Warn("checkout for a closed proposal", "proposalId", proposalID, "error", err)
		return outcomeIgnored, nil
	case err != nil:
		return "", err
	}

	if session.Customer != nil && session.Customer.ID != "" {
		if err := d.clients.LinkStripeCustomer(ctx, result.ClientID, session.Customer.ID); err != nil {
			return "", apperr.Internal("link payment customer", err)
		}
	}
	if result.ProjectID != nil {
		if err := d.startProject(ctx, *result.ProjectID); err != nil {
			return "", err
		}
	}
	return outcomeApplied, nil
}

func (d *Dispatcher) paymentSucceeded(ctx context.Context, pi *stripe.PaymentIntent) (string, error) {
	if err := d.audit.Record(ctx, audit.Entry{
		Action: audit.ActionPaymentSucceeded,
		Payload: map[string]any{
			"paymentIntentId": pi.ID,
			"amount":          pi.Amount,
			"currency":        string(pi.Currency),
		},
	}); err != nil {
		return "", apperr.Internal("record payment", err)
	}
	return outcomeApplied, nil
}

func firstPriceID(sub *stripe.Subscription) string {
	if sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil && item.Price.ID != "" {
			return item.Price.ID
		}
	}
	return ""
}

func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub.CurrentPeriodEnd <= 0 {
		return nil
	}
	t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	return &t
}
