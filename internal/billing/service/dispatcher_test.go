package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/audit/audittest"
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

type memBilling struct {
	claimed       map[string]bool
	released      []string
	invoices      map[string]*domain.Invoice
	subscriptions map[string]*domain.Subscription
	lastPaid      []uuid.UUID
	claimErr      error
}

func newMemBilling() *memBilling {
	return &memBilling{
		claimed:       map[string]bool{},
		invoices:      map[string]*domain.Invoice{},
		subscriptions: map[string]*domain.Subscription{},
	}
}

func (m *memBilling) ClaimEvent(_ context.Context, eventID, _ string) (bool, error) {
	if m.claimErr != nil {
		return false, m.claimErr
	}
	if m.claimed[eventID] {
		return false, nil
	}
	m.claimed[eventID] = true
	return true, nil
}

func (m *memBilling) ReleaseEvent(_ context.Context, eventID string) error {
	delete(m.claimed, eventID)
	m.released = append(m.released, eventID)
	return nil
}

func (m *memBilling) GetInvoiceByStripeID(_ context.Context, id string) (domain.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return domain.Invoice{}, repository.ErrNotFound
	}
	return *inv, nil
}

func (m *memBilling) find(id uuid.UUID) *domain.Invoice {
	for _, inv := range m.invoices {
		if inv.ID == id {
			return inv
		}
	}
	return nil
}

func (m *memBilling) MarkInvoicePaid(_ context.Context, id uuid.UUID, at time.Time, onPaid db.TxHook) (bool, error) {
	inv := m.find(id)
	if inv == nil || inv.Status == domain.InvoicePaid {
		return false, nil
	}
	if err := onPaid(nil); err != nil {
		return false, err
	}
	inv.Status = domain.InvoicePaid
	inv.PaidAt = &at
	return true, nil
}

func (m *memBilling) MarkInvoiceOverdue(_ context.Context, id uuid.UUID, onOverdue db.TxHook) (bool, error) {
	inv := m.find(id)
	if inv == nil || inv.Status == domain.InvoicePaid || inv.Status == domain.InvoiceOverdue {
		return false, nil
	}
	if err := onOverdue(nil); err != nil {
		return false, err
	}
	inv.Status = domain.InvoiceOverdue
	return true, nil
}

func (m *memBilling) CreateSubscription(_ context.Context, s domain.Subscription, onCreated db.TxHook) (bool, error) {
	if _, ok := m.subscriptions[s.StripeSubscriptionID]; ok {
		return false, nil
	}
	if err := onCreated(nil); err != nil {
		return false, err
	}
	m.subscriptions[s.StripeSubscriptionID] = &s
	return true, nil
}

func (m *memBilling) GetSubscriptionByStripeID(_ context.Context, id string) (domain.Subscription, error) {
	s, ok := m.subscriptions[id]
	if !ok {
		return domain.Subscription{}, repository.ErrNotFound
	}
	return *s, nil
}

func (m *memBilling) UpdateSubscriptionStatus(_ context.Context, id uuid.UUID, status domain.SubscriptionStatus, periodEnd *time.Time) error {
	for _, s := range m.subscriptions {
		if s.ID == id {
			s.Status = status
			if periodEnd != nil {
				s.CurrentPeriodEnd = periodEnd
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memBilling) MarkLastInvoicePaid(_ context.Context, clientID uuid.UUID) error {
	m.lastPaid = append(m.lastPaid, clientID)
	return nil
}

type memClients struct {
	byCustomer map[string]clientdomain.Client
	plans      map[uuid.UUID]clientdomain.Plan
	links      map[uuid.UUID]string
}

func newMemClients() *memClients {
	return &memClients{
		byCustomer: map[string]clientdomain.Client{},
		plans:      map[uuid.UUID]clientdomain.Plan{},
		links:      map[uuid.UUID]string{},
	}
}

func (m *memClients) GetByStripeCustomerID(_ context.Context, customerID string) (clientdomain.Client, error) {
	c, ok := m.byCustomer[customerID]
	if !ok {
		return clientdomain.Client{}, clientrepo.ErrNotFound
	}
	return c, nil
}

func (m *memClients) LinkStripeCustomer(_ context.Context, id uuid.UUID, customerID string) error {
	m.links[id] = customerID
	return nil
}

func (m *memClients) SetPlan(_ context.Context, id uuid.UUID, plan clientdomain.Plan) error {
	m.plans[id] = plan
	return nil
}

type fakeProjects struct {
	started []uuid.UUID
	missing bool
	err     error
}

func (f *fakeProjects) StartAfterDeposit(_ context.Context, id uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.missing {
		return false, apperr.NotFound("project not found")
	}
	f.started = append(f.started, id)
	return true, nil
}

type fakeAcceptor struct {
	result   proposalservice.AcceptResult
	err      error
	calls    []uuid.UUID
	invoices []string
}

func (f *fakeAcceptor) Accept(_ context.Context, id uuid.UUID, invoiceID string) (proposalservice.AcceptResult, error) {
	f.calls = append(f.calls, id)
	f.invoices = append(f.invoices, invoiceID)
	return f.result, f.err
}

type fixture struct {
	store     *memBilling
	clients   *memClients
	projects  *fakeProjects
	proposals *fakeAcceptor
	audit     *audittest.Recorder
	d         *Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMemBilling(),
		clients:   newMemClients(),
		projects:  &fakeProjects{},
		proposals: &fakeAcceptor{},
		audit:     &audittest.Recorder{},
	}
	priceToPlan := map[string]string{"price_plus": "care_plus", "price_pro": "care_pro"}
	f.d = NewDispatcher(f.store, f.clients, f.projects, f.proposals, f.audit, priceToPlan, logger.NewNop())
	f.d.now = func() time.Time { return time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC) }
	return f
}

func event(t *testing.T, id, eventType string, data any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	return stripe.Event{ID: id, Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}
}

func (f *fixture) addInvoice(stripeID string, typ domain.InvoiceType, projectID *uuid.UUID) *domain.Invoice {
	inv := &domain.Invoice{
		ID:              uuid.New(),
		ClientID:        uuid.New(),
		ProjectID:       projectID,
		Type:            typ,
		Status:          domain.InvoiceSent,
		Amount:          6000,
		Currency:        "USD",
		StripeInvoiceID: &stripeID,
	}
	f.store.invoices[stripeID] = inv
	return inv
}

func TestProcessDepositPaidStartsProjectOnce(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	inv := f.addInvoice("in_1", domain.InvoiceDeposit, &projectID)
	evt := event(t, "evt_1", EventInvoicePaid, map[string]any{"id": "in_1", "object": "invoice"})

	if err := f.d.Process(context.Background(), evt); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := f.d.Process(context.Background(), evt); err != nil {
		t.Fatalf("expected duplicate to be acknowledged, got %v", err)
	}

	if inv.Status != domain.InvoicePaid || inv.PaidAt == nil {
		t.Fatalf("expected invoice paid with timestamp, got %s", inv.Status)
	}
	if len(f.projects.started) != 1 || f.projects.started[0] != projectID {
		t.Fatalf("expected project started once, got %v", f.projects.started)
	}
	if n := f.audit.Count(audit.ActionInvoicePaid); n != 1 {
		t.Fatalf("expected 1 invoice_paid audit, got %d", n)
	}
}

func TestProcessPaymentSucceededAliasAppliesOnce(t *testing.T) {
	f := newFixture()
	f.addInvoice("in_2", domain.InvoiceMilestone, nil)

	first := event(t, "evt_a", EventInvoicePaid, map[string]any{"id": "in_2"})
	second := event(t, "evt_b", EventInvoicePaymentSucceeded, map[string]any{"id": "in_2"})
	for _, evt := range []stripe.Event{first, second} {
		if err := f.d.Process(context.Background(), evt); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if n := f.audit.Count(audit.ActionMilestonePaymentReceived); n != 1 {
		t.Fatalf("expected 1 milestone audit, got %d", n)
	}
	if n := f.audit.Count(audit.ActionInvoicePaid); n != 1 {
		t.Fatalf("expected 1 invoice_paid audit, got %d", n)
	}
}

func TestProcessCareInvoiceUpdatesSubscription(t *testing.T) {
	f := newFixture()
	inv := f.addInvoice("in_care", domain.InvoiceCare, nil)

	if err := f.d.Process(context.Background(), event(t, "evt_c", EventInvoicePaid, map[string]any{"id": "in_care"})); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.store.lastPaid) != 1 || f.store.lastPaid[0] != inv.ClientID {
		t.Fatalf("expected last invoice status updated for client, got %v", f.store.lastPaid)
	}
}

func TestProcessUnknownInvoiceIsAcknowledged(t *testing.T) {
	f := newFixture()
	if err := f.d.Process(context.Background(), event(t, "evt_x", EventInvoicePaid, map[string]any{"id": "in_missing"})); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.audit.Entries) != 0 {
		t.Fatalf("expected no side effects, got %d audit entries", len(f.audit.Entries))
	}
}

func TestProcessIgnoresUnhandledType(t *testing.T) {
	f := newFixture()
	if err := f.d.Process(context.Background(), event(t, "evt_u", "charge.refunded", map[string]any{"id": "ch_1"})); err != nil {
		t.Fatalf("expected unhandled type to be acknowledged, got %v", err)
	}
	if !f.store.claimed["evt_u"] {
		t.Fatal("expected unhandled event to stay claimed")
	}
}

func TestProcessReleasesClaimOnFailure(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	f.addInvoice("in_3", domain.InvoiceDeposit, &projectID)
	f.projects.err = apperr.Internal("db down", errors.New("boom"))

	evt := event(t, "evt_fail", EventInvoicePaid, map[string]any{"id": "in_3"})
	if err := f.d.Process(context.Background(), evt); err == nil {
		t.Fatal("expected error when project start fails")
	}
	if f.store.claimed["evt_fail"] || len(f.store.released) != 1 {
		t.Fatalf("expected claim released, released=%v", f.store.released)
	}

	f.projects.err = nil
	if err := f.d.Process(context.Background(), evt); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(f.projects.started) != 1 {
		t.Fatalf("expected project started on retry, got %v", f.projects.started)
	}
}

func TestProcessRetryAfterFailedAuditRecordsInvoicePaid(t *testing.T) {
	f := newFixture()
	inv := f.addInvoice("in_audit", domain.InvoiceMilestone, nil)
	evt := event(t, "evt_audit", EventInvoicePaid, map[string]any{"id": "in_audit"})

	f.audit.Err = errors.New("audit unavailable")
	if err := f.d.Process(context.Background(), evt); err == nil {
		t.Fatal("expected first delivery to fail")
	}
	if inv.Status == domain.InvoicePaid {
		t.Fatal("expected failed audit to leave the invoice unpaid")
	}

	f.audit.Err = nil
	if err := f.d.Process(context.Background(), evt); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if inv.Status != domain.InvoicePaid {
		t.Fatalf("expected invoice paid on retry, got %s", inv.Status)
	}
	if n := f.audit.Count(audit.ActionInvoicePaid); n != 1 {
		t.Fatalf("expected 1 invoice_paid audit, got %d", n)
	}
	if n := f.audit.Count(audit.ActionMilestonePaymentReceived); n != 1 {
		t.Fatalf("expected 1 milestone audit, got %d", n)
	}
}

func TestProcessDepositForMissingProject(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	f.addInvoice("in_4", domain.InvoiceDeposit, &projectID)
	f.projects.missing = true

	if err := f.d.Process(context.Background(), event(t, "evt_m", EventInvoicePaid, map[string]any{"id": "in_4"})); err != nil {
		t.Fatalf("expected missing project to be acknowledged, got %v", err)
	}
}

func TestProcessClaimFailure(t *testing.T) {
	f := newFixture()
	f.store.claimErr = errors.New("connection refused")
	err := f.d.Process(context.Background(), event(t, "evt_e", EventInvoicePaid, map[string]any{"id": "in_1"}))
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestProcessInvoicePaymentFailed(t *testing.T) {
	f := newFixture()
	inv := f.addInvoice("in_5", domain.InvoiceCare, nil)

	if err := f.d.Process(context.Background(), event(t, "evt_pf", EventInvoicePaymentFailed, map[string]any{"id": "in_5"})); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if inv.Status != domain.InvoiceOverdue {
		t.Fatalf("expected overdue, got %s", inv.Status)
	}
	if n := f.audit.Count(audit.ActionInvoicePaymentFailed); n != 1 {
		t.Fatalf("expected 1 payment failure audit, got %d", n)
	}
}

func subscriptionData(id, customer, status, price string) map[string]any {
	return map[string]any{
		"id":                 id,
		"object":             "subscription",
		"customer":           customer,
		"status":             status,
		"current_period_end": time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC).Unix(),
		"items": map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "si_1", "price": map[string]any{"id": price}},
			},
		},
	}
}

func TestProcessSubscriptionLifecycle(t *testing.T) {
	f := newFixture()
	client := clientdomain.Client{ID: uuid.New(), Plan: clientdomain.PlanNone}
	f.clients.byCustomer["cus_1"] = client
	ctx := context.Background()

	if err := f.d.Process(ctx, event(t, "evt_s1", EventSubscriptionCreated, subscriptionData("sub_1", "cus_1", "active", "price_pro"))); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	sub := f.store.subscriptions["sub_1"]
	if sub == nil || sub.Plan != clientdomain.PlanCarePro || sub.Status != domain.SubscriptionActive {
		t.Fatalf("expected active care_pro subscription, got %+v", sub)
	}
	if sub.CurrentPeriodEnd == nil || sub.CurrentPeriodEnd.Month() != time.April {
		t.Fatalf("expected period end in April, got %v", sub.CurrentPeriodEnd)
	}
	if f.clients.plans[client.ID] != clientdomain.PlanCarePro {
		t.Fatalf("expected client plan care_pro, got %s", f.clients.plans[client.ID])
	}

	if err := f.d.Process(ctx, event(t, "evt_s2", EventSubscriptionUpdated, subscriptionData("sub_1", "cus_1", "past_due", "price_pro"))); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sub.Status != domain.SubscriptionOnHold {
		t.Fatalf("expected on_hold, got %s", sub.Status)
	}

	if err := f.d.Process(ctx, event(t, "evt_s3", EventSubscriptionDeleted, subscriptionData("sub_1", "cus_1", "canceled", "price_pro"))); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sub.Status != domain.SubscriptionCanceled {
		t.Fatalf("expected canceled, got %s", sub.Status)
	}
	if f.clients.plans[client.ID] != clientdomain.PlanNone {
		t.Fatalf("expected client plan reset to none, got %s", f.clients.plans[client.ID])
	}
	for _, action := range []string{audit.ActionSubscriptionCreated, audit.ActionSubscriptionUpdated, audit.ActionSubscriptionCanceled} {
		if n := f.audit.Count(action); n != 1 {
			t.Fatalf("expected 1 %s audit, got %d", action, n)
		}
	}
}

func TestProcessSubscriptionUnmappedPriceFallsBack(t *testing.T) {
	f := newFixture()
	client := clientdomain.Client{ID: uuid.New()}
	f.clients.byCustomer["cus_2"] = client

	if err := f.d.Process(context.Background(), event(t, "evt_s4", EventSubscriptionCreated, subscriptionData("sub_2", "cus_2", "active", "price_other"))); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if f.clients.plans[client.ID] != clientdomain.PlanCareBasic {
		t.Fatalf("expected care_basic fallback, got %s", f.clients.plans[client.ID])
	}
}

func TestProcessSubscriptionForUnknownCustomer(t *testing.T) {
	f := newFixture()
	if err := f.d.Process(context.Background(), event(t, "evt_s5", EventSubscriptionCreated, subscriptionData("sub_3", "cus_unknown", "active", "price_pro"))); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.store.subscriptions) != 0 {
		t.Fatalf("expected no subscription stored, got %d", len(f.store.subscriptions))
	}
}

func TestProcessCheckoutCompletedAcceptsProposal(t *testing.T) {
	f := newFixture()
	proposalID := uuid.New()
	clientID := uuid.New()
	projectID := uuid.New()
	f.proposals.result = proposalservice.AcceptResult{ProposalID: proposalID, ClientID: clientID, ProjectID: &projectID, Accepted: true}

	data := map[string]any{
		"id":       "cs_1",
		"object":   "checkout.session",
		"customer": "cus_9",
		"invoice":  "in_dep",
		"metadata": map[string]string{"proposalId": proposalID.String()},
	}
	if err := f.d.Process(context.Background(), event(t, "evt_cs", EventCheckoutCompleted, data)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.proposals.calls) != 1 || f.proposals.calls[0] != proposalID || f.proposals.invoices[0] != "in_dep" {
		t.Fatalf("expected accept for proposal with invoice in_dep, got %v %v", f.proposals.calls, f.proposals.invoices)
	}
	if f.clients.links[clientID] != "cus_9" {
		t.Fatalf("expected customer linked, got %q", f.clients.links[clientID])
	}
	if len(f.projects.started) != 1 || f.projects.started[0] != projectID {
		t.Fatalf("expected project started, got %v", f.projects.started)
	}
}

func TestProcessCheckoutCompletedEdgeCases(t *testing.T) {
	cases := []struct {
		name     string
		metadata map[string]string
		err      error
		accepts  int
	}{
		{name: "no reference", metadata: map[string]string{}, accepts: 0},
		{name: "invalid reference", metadata: map[string]string{"proposalId": "nope"}, accepts: 0},
		{name: "unknown proposal", metadata: map[string]string{"proposalId": uuid.NewString()}, err: apperr.NotFound("proposal not found"), accepts: 1},
		{name: "declined proposal", metadata: map[string]string{"proposalId": uuid.NewString()}, err: apperr.Validation("proposal was declined"), accepts: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.proposals.err = tc.err
			data := map[string]any{"id": "cs_2", "metadata": tc.metadata}
			if err := f.d.Process(context.Background(), event(t, "evt_"+tc.name, EventCheckoutCompleted, data)); err != nil {
				t.Fatalf("expected acknowledgement, got %v", err)
			}
			if len(f.proposals.calls) != tc.accepts {
				t.Fatalf("expected %d accept calls, got %d", tc.accepts, len(f.proposals.calls))
			}
			if len(f.projects.started) != 0 {
				t.Fatalf("expected no project started, got %v", f.projects.started)
			}
		})
	}
}

func TestProcessPaymentIntentSucceeded(t *testing.T) {
	f := newFixture()
	data := map[string]any{"id": "pi_1", "amount": 600000, "currency": "usd"}
	if err := f.d.Process(context.Background(), event(t, "evt_pi", EventPaymentIntentSucceeded, data)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n := f.audit.Count(audit.ActionPaymentSucceeded); n != 1 {
		t.Fatalf("expected 1 payment_succeeded audit, got %d", n)
	}
}

func TestProcessMalformedDataIsAcknowledged(t *testing.T) {
	f := newFixture()
	evt := stripe.Event{ID: "evt_bad", Type: stripe.EventType(EventInvoicePaid), Data: &stripe.EventData{Raw: json.RawMessage(`"not an object"`)}}
	if err := f.d.Process(context.Background(), evt); err != nil {
		t.Fatalf("expected malformed event to be acknowledged, got %v", err)
	}
}
