package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agency_portal_backend/internal/adapters/payments"
	"agency_portal_backend/internal/adapters/storage/storagetest"
	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/audit/audittest"
	billingdomain "agency_portal_backend/internal/billing/domain"
	clientdomain "agency_portal_backend/internal/clients/domain"
	clientrepo "agency_portal_backend/internal/clients/repository"
	clientservice "agency_portal_backend/internal/clients/service"
	"agency_portal_backend/internal/copywriter"
	"agency_portal_backend/internal/events"
	leaddomain "agency_portal_backend/internal/leads/domain"
	leadrepo "agency_portal_backend/internal/leads/repository"
	"agency_portal_backend/internal/pdf"
	"agency_portal_backend/internal/proposals/catalog"
	"agency_portal_backend/internal/proposals/domain"
	"agency_portal_backend/internal/proposals/repository"
	"agency_portal_backend/internal/proposals/transport"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(q db.Querier) error) error { return fn(nil) }

type memStore struct {
	mu        sync.Mutex
	counters  map[int]int
	proposals map[uuid.UUID]domain.Proposal
}

func newMemStore() *memStore {
	return &memStore{counters: map[int]int{}, proposals: map[uuid.UUID]domain.Proposal{}}
}

func (m *memStore) NextSequence(_ context.Context, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[year]++
	return m.counters[year], nil
}

func (m *memStore) Create(_ context.Context, p domain.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposals[p.ID] = p
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (domain.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return domain.Proposal{}, repository.ErrNotFound
	}
	return p, nil
}

func (m *memStore) GetByIDTx(ctx context.Context, _ db.Querier, id uuid.UUID) (domain.Proposal, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) SetPDF(_ context.Context, id uuid.UUID, key string) error {
	return m.update(id, func(p *domain.Proposal) bool { p.PDFKey = &key; return true })
}

func (m *memStore) MarkSent(_ context.Context, id uuid.UUID, sessionID, url string, at time.Time) (bool, error) {
	ok := false
	err := m.update(id, func(p *domain.Proposal) bool {
		if p.Status != domain.StatusDraft {
			return false
		}
		p.Status, p.CheckoutSessionID, p.CheckoutURL, p.SentAt = domain.StatusSent, &sessionID, &url, &at
		ok = true
		return true
	})
	return ok, err
}

func (m *memStore) Decline(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ok := false
	err := m.update(id, func(p *domain.Proposal) bool {
		if !p.Status.IsOpen() {
			return false
		}
		p.Status, p.DeclinedAt = domain.StatusDeclined, &at
		ok = true
		return true
	})
	return ok, err
}

func (m *memStore) Sign(_ context.Context, _ db.Querier, id uuid.UUID, at time.Time) (bool, error) {
	ok := false
	err := m.update(id, func(p *domain.Proposal) bool {
		if !p.Status.IsOpen() {
			return false
		}
		p.Status, p.SignedAt = domain.StatusSigned, &at
		ok = true
		return true
	})
	return ok, err
}

func (m *memStore) update(id uuid.UUID, fn func(p *domain.Proposal) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return repository.ErrNotFound
	}
	if fn(&p) {
		m.proposals[id] = p
	}
	return nil
}

type memLeads struct {
	mu    sync.Mutex
	leads map[uuid.UUID]leaddomain.Lead
}

func (m *memLeads) GetByID(_ context.Context, id uuid.UUID) (leaddomain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return leaddomain.Lead{}, leadrepo.ErrNotFound
	}
	return l, nil
}

func (m *memLeads) SetStatus(_ context.Context, _ db.Querier, id uuid.UUID, to leaddomain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return leadrepo.ErrNotFound
	}
	l.Status = to
	m.leads[id] = l
	return nil
}

type memClients struct{ clients map[uuid.UUID]clientdomain.Client }

func (m *memClients) GetByID(_ context.Context, id uuid.UUID) (clientdomain.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return clientdomain.Client{}, clientrepo.ErrNotFound
	}
	return c, nil
}

// fakeConverter converts each lead once and remembers the ids.
type fakeConverter struct {
	results   map[uuid.UUID]clientservice.ConversionResult
	announced int
}

func (f *fakeConverter) ConvertTx(_ context.Context, _ db.Querier, leadID uuid.UUID, _ clientservice.ConversionInput) (clientservice.ConversionResult, error) {
	if r, ok := f.results[leadID]; ok {
		r.Created = false
		return r, nil
	}
	r := clientservice.ConversionResult{LeadID: leadID, ClientID: uuid.New(), ProjectID: uuid.New(), Created: true}
	f.results[leadID] = r
	return r, nil
}

func (f *fakeConverter) Announce(_ context.Context, r clientservice.ConversionResult) {
	if r.Created {
		f.announced++
	}
}

type memDeposits struct{ invoices []billingdomain.Invoice }

func (m *memDeposits) CreateDeposit(_ context.Context, _ db.Querier, inv billingdomain.Invoice) (bool, error) {
	for _, existing := range m.invoices {
		if *existing.ProposalID == *inv.ProposalID {
			return false, nil
		}
	}
	m.invoices = append(m.invoices, inv)
	return true, nil
}

type fakeWriter struct{ err error }

func (f fakeWriter) WriteProposal(_ context.Context, b copywriter.ProposalBrief) (copywriter.ProposalContent, error) {
	if f.err != nil {
		return copywriter.ProposalContent{}, f.err
	}
	return copywriter.ProposalContent{
		ExecutiveSummary: "A new website for " + b.Company,
		KeyFeatures:      []string{"Fast pages"},
		Deliverables:     []string{"Launch"},
	}, nil
}

type fakeRenderer struct {
	docs []pdf.ProposalDoc
	err  error
}

func (f *fakeRenderer) RenderProposal(_ context.Context, doc pdf.ProposalDoc) ([]byte, error) {
	f.docs = append(f.docs, doc)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7"), nil
}

type fakeCheckout struct{ requests []payments.DepositCheckout }

func (f *fakeCheckout) CreateDepositCheckout(_ context.Context, req payments.DepositCheckout) (payments.CheckoutSession, error) {
	f.requests = append(f.requests, req)
	return payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.test/cs_test_1"}, nil
}

type fixture struct {
	svc       *Service
	store     *memStore
	leads     *memLeads
	clients   *memClients
	converter *fakeConverter
	deposits  *memDeposits
	renderer  *fakeRenderer
	objects   *storagetest.Memory
	checkout  *fakeCheckout
	recorder  *audittest.Recorder
	bus       *events.InMemoryBus
	lead      leaddomain.Lead
	client    clientdomain.Client
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	lead := leaddomain.Lead{ID: uuid.New(), Name: "Jane Doe", Company: "Acme Ltd", Email: "jane@acme.com", Status: leaddomain.StatusQualified}
	client := clientdomain.Client{
		ID:           uuid.New(),
		Company:      "Globex",
		BillingEmail: "billing@globex.com",
		Contacts:     []clientdomain.Contact{{Name: "Hank", Email: "hank@globex.com", Role: clientdomain.PrimaryContactRole}},
	}

	f := &fixture{
		store:     newMemStore(),
		leads:     &memLeads{leads: map[uuid.UUID]leaddomain.Lead{lead.ID: lead}},
		clients:   &memClients{clients: map[uuid.UUID]clientdomain.Client{client.ID: client}},
		converter: &fakeConverter{results: map[uuid.UUID]clientservice.ConversionResult{}},
		deposits:  &memDeposits{},
		renderer:  &fakeRenderer{},
		objects:   storagetest.NewMemory(),
		checkout:  &fakeCheckout{},
		recorder:  &audittest.Recorder{},
		bus:       events.NewInMemoryBus(logger.NewNop()),
		lead:      lead,
		client:    client,
		clock:     time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC),
	}
	f.svc = New(Deps{
		Store:      f.store,
		Leads:      f.leads,
		Clients:    f.clients,
		Converter:  f.converter,
		Deposits:   f.deposits,
		Writer:     fakeWriter{},
		Renderer:   f.renderer,
		Objects:    f.objects,
		Checkout:   f.checkout,
		Tx:         passTx{},
		Audit:      f.recorder,
		Bus:        f.bus,
		Catalog:    cat,
		AgencyName: "Studio",
		PortalURL:  "https://portal.test",
		Log:        logger.NewNop(),
	})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) generate(t *testing.T, req transport.GenerateProposalRequest) transport.ProposalResponse {
	t.Helper()
	resp, err := f.svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return resp
}

func TestGenerate_NumbersIncreaseAndResetEachYear(t *testing.T) {
	f := newFixture(t)
	req := transport.GenerateProposalRequest{LeadID: &f.lead.ID, Package: "starter"}

	first := f.generate(t, req)
	second := f.generate(t, req)
	f.clock = time.Date(2027, time.January, 2, 9, 0, 0, 0, time.UTC)
	third := f.generate(t, req)

	if first.ProposalNumber != "PROP-2026-0001" || second.ProposalNumber != "PROP-2026-0002" {
		t.Fatalf("expected sequential numbers, got %s and %s", first.ProposalNumber, second.ProposalNumber)
	}
	if third.ProposalNumber != "PROP-2027-0001" {
		t.Fatalf("expected sequence reset in new year, got %s", third.ProposalNumber)
	}
}

func TestGenerate_PricesUrgentDeliveryAndStoresDocument(t *testing.T) {
	f := newFixture(t)

	resp := f.generate(t, transport.GenerateProposalRequest{ClientID: &f.client.ID, Package: "standard", UrgentDelivery: true})

	if resp.Price != 19500 || resp.Deposit != 7800 {
		t.Fatalf("expected price 19500 and deposit 7800, got %d and %d", resp.Price, resp.Deposit)
	}
	if resp.Status != string(domain.StatusDraft) || resp.Version != 1 {
		t.Fatalf("expected draft version 1, got %s v%d", resp.Status, resp.Version)
	}
	if !resp.HasDocument {
		t.Fatal("expected document to be attached")
	}
	key := "proposals/" + resp.ID.String() + "/proposal-" + resp.ProposalNumber + ".pdf"
	if _, ok := f.objects.Objects[key]; !ok {
		t.Fatalf("expected document at %s", key)
	}
	doc := f.renderer.docs[0]
	if doc.RecipientName != "Hank" || doc.PortalURL != "https://portal.test/portal/proposals/"+resp.ID.String() {
		t.Fatalf("unexpected document %+v", doc)
	}
	if n := f.recorder.Count(audit.ActionProposalGenerated); n != 1 {
		t.Fatalf("expected one generation audit, got %d", n)
	}
}

func TestGenerate_WithoutRendererStillCreatesDraft(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = pdf.ErrDisabled

	resp := f.generate(t, transport.GenerateProposalRequest{LeadID: &f.lead.ID, Package: "premium"})
	if resp.HasDocument {
		t.Fatal("expected no document")
	}
	if len(f.objects.Objects) != 0 {
		t.Fatalf("expected nothing stored, got %d objects", len(f.objects.Objects))
	}
}

func TestGenerate_RecipientRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unknown := uuid.New()

	tests := []struct {
		name string
		req  transport.GenerateProposalRequest
		kind apperr.Kind
	}{
		{"both recipients", transport.GenerateProposalRequest{LeadID: &f.lead.ID, ClientID: &f.client.ID, Package: "starter"}, apperr.KindValidation},
		{"no recipient", transport.GenerateProposalRequest{Package: "starter"}, apperr.KindValidation},
		{"unknown lead", transport.GenerateProposalRequest{LeadID: &unknown, Package: "starter"}, apperr.KindNotFound},
		{"unknown client", transport.GenerateProposalRequest{ClientID: &unknown, Package: "starter"}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Generate(ctx, tt.req)
			if !apperr.Is(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
		})
	}
	if len(f.store.proposals) != 0 || len(f.store.counters) != 0 {
		t.Fatal("expected no proposal and no number allocated")
	}
}

func TestGenerate_CopywriterFailureIsExternal(t *testing.T) {
	f := newFixture(t)
	f.svc.Writer = fakeWriter{err: errors.New("model unavailable")}

	_, err := f.svc.Generate(context.Background(), transport.GenerateProposalRequest{LeadID: &f.lead.ID, Package: "starter"})
	if !apperr.Is(err, apperr.KindExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestSend_OpensDepositCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.generate(t, transport.GenerateProposalRequest{LeadID: &f.lead.ID, Package: "standard"})

	var published []events.ProposalSent
	var mu sync.Mutex
	f.bus.Subscribe(events.ProposalSent{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e.(events.ProposalSent))
		return nil
	}))

	resp, err := f.svc.Send(ctx, draft.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.bus.Wait()

	if resp.Status != string(domain.StatusSent) || resp.CheckoutURL == nil {
		t.Fatalf("expected sent proposal with checkout url, got %+v", resp)
	}
	if got := f.checkout.requests[0]; got.Amount != 6000 || got.ProposalID != draft.ID || got.CustomerEmail != "jane@acme.com" {
		t.Fatalf("unexpected checkout request %+v", got)
	}
	if f.leads.leads[f.lead.ID].Status != leaddomain.StatusProposalSent {
		t.Fatalf("expected lead proposal_sent, got %s", f.leads.leads[f.lead.ID].Status)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 || published[0].CheckoutURL != "https://checkout.test/cs_test_1" {
		t.Fatalf("expected one ProposalSent event, got %+v", published)
	}

	if _, err := f.svc.Send(ctx, draft.ID); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected resend to be rejected, got %v", err)
	}
}

func TestAccept_CreatesOnePaidDepositAndConvertsLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.generate(t, transport.GenerateProposalRequest{LeadID: &f.lead.ID, Package: "standard"})

	result, err := f.svc.Accept(ctx, draft.ID, "in_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted || result.ProjectID == nil {
		t.Fatalf("expected accepted proposal with project, got %+v", result)
	}

	if len(f.deposits.invoices) != 1 {
		t.Fatalf("expected one deposit invoice, got %d", len(f.deposits.invoices))
	}
	inv := f.deposits.invoices[0]
	if inv.Amount != 6000 || inv.Status != billingdomain.InvoicePaid || inv.Type != billingdomain.InvoiceDeposit {
		t.Fatalf("expected paid 6000 deposit, got %+v", inv)
	}
	if inv.ClientID != result.ClientID || inv.StripeInvoiceID == nil || *inv.StripeInvoiceID != "in_123" {
		t.Fatalf("unexpected deposit links %+v", inv)
	}
	if f.leads.leads[f.lead.ID].Status != leaddomain.StatusWon {
		t.Fatalf("expected lead won, got %s", f.leads.leads[f.lead.ID].Status)
	}
	if f.converter.announced != 1 {
		t.Fatalf("expected one conversion announcement, got %d", f.converter.announced)
	}

	again, err := f.svc.Accept(ctx, draft.ID, "in_123")
	if err != nil {
		t.Fatalf("unexpected error on repeat: %v", err)
	}
	if again.Accepted {
		t.Fatal("expected repeat acceptance to be a no-op")
	}
	if again.ClientID != result.ClientID || *again.ProjectID != *result.ProjectID {
		t.Fatal("expected repeat to report the same client and project")
	}
	if len(f.deposits.invoices) != 1 || f.recorder.Count(audit.ActionProposalAccepted) != 1 {
		t.Fatal("expected repeat to create nothing")
	}
}

func TestAccept_ClientProposalHasNoConversion(t *testing.T) {
	f := newFixture(t)
	draft := f.generate(t, transport.GenerateProposalRequest{ClientID: &f.client.ID, Package: "starter"})

	result, err := f.svc.Accept(context.Background(), draft.ID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ClientID != f.client.ID || result.ProjectID != nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if inv := f.deposits.invoices[0]; inv.Amount != 3400 || inv.StripeInvoiceID != nil {
		t.Fatalf("expected 3400 deposit without external ref, got %+v", inv)
	}
	if len(f.converter.results) != 0 {
		t.Fatal("expected no conversion")
	}
}

func TestAccept_DeclinedProposalIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.generate(t, transport.GenerateProposalRequest{LeadID: &f.lead.ID, Package: "starter"})

	if _, err := f.svc.Decline(ctx, draft.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, err := f.svc.Accept(ctx, draft.ID, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.Decline(ctx, draft.ID); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected second decline to be rejected, got %v", err)
	}
	if len(f.deposits.invoices) != 0 {
		t.Fatal("expected no deposit")
	}
}

func TestAccept_UnknownProposal(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Accept(context.Background(), uuid.New(), ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDownloadURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	withDoc := f.generate(t, transport.GenerateProposalRequest{LeadID: &f.lead.ID, Package: "starter"})

	url, err := f.svc.DownloadURL(ctx, withDoc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url.URL == "" {
		t.Fatal("expected presigned url")
	}

	f.renderer.err = errors.New("gotenberg down")
	withoutDoc := f.generate(t, transport.GenerateProposalRequest{LeadID: &f.lead.ID, Package: "starter"})
	if _, err := f.svc.DownloadURL(ctx, withoutDoc.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
