package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agency_portal_backend/internal/adapters/storage/storagetest"
	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/audit/audittest"
	billingdomain "agency_portal_backend/internal/billing/domain"
	billingrepo "agency_portal_backend/internal/billing/repository"
	clientdomain "agency_portal_backend/internal/clients/domain"
	clientrepo "agency_portal_backend/internal/clients/repository"
	"agency_portal_backend/internal/copywriter"
	"agency_portal_backend/internal/email"
	"agency_portal_backend/internal/pdf"
	projectdomain "agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/internal/reports/domain"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/money"

	"github.com/google/uuid"
)

type memReports struct {
	mu      sync.Mutex
	reports map[string]domain.Report
	pdfs    map[uuid.UUID]string
}

func newMemReports() *memReports {
	return &memReports{reports: map[string]domain.Report{}, pdfs: map[uuid.UUID]string{}}
}

func (m *memReports) Upsert(_ context.Context, r domain.Report) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.DocumentKey(r.ClientID, r.Period)
	if existing, ok := m.reports[key]; ok {
		r.ID = existing.ID
	}
	m.reports[key] = r
	return r.ID, nil
}

func (m *memReports) SetPDF(_ context.Context, id uuid.UUID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdfs[id] = key
	return nil
}

type memClients struct{ clients []clientdomain.Client }

func (m *memClients) GetByID(_ context.Context, id uuid.UUID) (clientdomain.Client, error) {
	for _, c := range m.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return clientdomain.Client{}, clientrepo.ErrNotFound
}

func (m *memClients) ListOnPlan(context.Context) ([]clientdomain.Client, error) {
	var out []clientdomain.Client
	for _, c := range m.clients {
		if c.Plan != clientdomain.PlanNone {
			out = append(out, c)
		}
	}
	return out, nil
}

type memProjects struct{ projects map[uuid.UUID][]projectdomain.Project }

func (m *memProjects) ListByClient(_ context.Context, clientID uuid.UUID) ([]projectdomain.Project, error) {
	return m.projects[clientID], nil
}

type memBilling struct {
	paid map[uuid.UUID]int64
	subs map[uuid.UUID]billingdomain.Subscription
	from time.Time
	to   time.Time
	mu   sync.Mutex
}

func (m *memBilling) SumPaidBetween(_ context.Context, clientID uuid.UUID, from, to time.Time) (int64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.from, m.to = from, to
	total := m.paid[clientID]
	if total == 0 {
		return 0, 0, nil
	}
	return total, 1, nil
}

func (m *memBilling) ActiveSubscription(_ context.Context, clientID uuid.UUID) (billingdomain.Subscription, error) {
	sub, ok := m.subs[clientID]
	if !ok {
		return billingdomain.Subscription{}, billingrepo.ErrNotFound
	}
	return sub, nil
}

type fakeActivities struct{}

func (fakeActivities) CountActivitiesBetween(context.Context, uuid.UUID, time.Time, time.Time) (map[string]int, error) {
	return map[string]int{audit.ActivityProject: 3, audit.ActivityPayment: 1}, nil
}

type fakeAnalyst struct {
	mu    sync.Mutex
	facts []copywriter.ReportFacts
	fail  map[string]bool
}

func (f *fakeAnalyst) ReportInsights(_ context.Context, facts copywriter.ReportFacts) (copywriter.ReportInsights, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts = append(f.facts, facts)
	if f.fail[facts.Company] {
		return copywriter.ReportInsights{}, errors.New("model unavailable")
	}
	return copywriter.ReportInsights{
		Summary:          "A steady month for " + facts.Company,
		KeyAchievements:  []string{"Design approved"},
		Recommendations:  []copywriter.Recommendation{{Title: "Add a blog", Description: "Publish twice a month", Priority: "medium"}},
		PerformanceScore: 140,
		SecurityScore:    88,
	}, nil
}

type fakeRenderer struct {
	mu   sync.Mutex
	docs []pdf.ReportDoc
	err  error
}

func (f *fakeRenderer) RenderReport(_ context.Context, doc pdf.ReportDoc) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7"), nil
}

type sentReport struct {
	to          string
	mail        email.ReportMail
	attachments []email.Attachment
}

type recordingMailer struct {
	email.NoopSender
	mu   sync.Mutex
	sent []sentReport
}

func (r *recordingMailer) SendMonthlyReport(_ context.Context, to string, mail email.ReportMail, attachments ...email.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentReport{to: to, mail: mail, attachments: attachments})
	return nil
}

type fixture struct {
	svc      *Service
	store    *memReports
	clients  *memClients
	projects *memProjects
	billing  *memBilling
	analyst  *fakeAnalyst
	renderer *fakeRenderer
	objects  *storagetest.Memory
	mailer   *recordingMailer
	recorder *audittest.Recorder
	client   clientdomain.Client
	period   domain.Period
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := clientdomain.Client{ID: uuid.New(), Company: "Globex", BillingEmail: "billing@globex.com", Plan: clientdomain.PlanCarePlus}
	end := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

	f := &fixture{
		store:   newMemReports(),
		clients: &memClients{clients: []clientdomain.Client{client}},
		projects: &memProjects{projects: map[uuid.UUID][]projectdomain.Project{client.ID: {
			{ID: uuid.New(), ClientID: client.ID, Package: projectdomain.PackageStandard, Status: projectdomain.StageBuild},
			{ID: uuid.New(), ClientID: client.ID, Package: projectdomain.PackageStarter, Status: projectdomain.StageClosed},
		}}},
		billing: &memBilling{
			paid: map[uuid.UUID]int64{client.ID: 2500},
			subs: map[uuid.UUID]billingdomain.Subscription{client.ID: {
				ClientID:         client.ID,
				Plan:             clientdomain.PlanCarePlus,
				Status:           billingdomain.SubscriptionActive,
				CurrentPeriodEnd: &end,
			}},
		},
		analyst:  &fakeAnalyst{fail: map[string]bool{}},
		renderer: &fakeRenderer{},
		objects:  storagetest.NewMemory(),
		mailer:   &recordingMailer{},
		recorder: &audittest.Recorder{},
		client:   client,
		period:   domain.Period{Year: 2026, Month: 2},
	}
	f.svc = New(Deps{
		Store:      f.store,
		Clients:    f.clients,
		Projects:   f.projects,
		Billing:    f.billing,
		Activities: fakeActivities{},
		Analyst:    f.analyst,
		Renderer:   f.renderer,
		Objects:    f.objects,
		Mailer:     f.mailer,
		Audit:      f.recorder,
		AgencyName: "Studio",
		Log:        logger.NewNop(),
	})
	f.svc.now = func() time.Time { return time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC) }
	return f
}

func TestGenerate_StoresRendersAndMails(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Generate(context.Background(), f.client.ID, f.period)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	key := domain.DocumentKey(f.client.ID, f.period)
	stored, ok := f.store.reports[key]
	if !ok {
		t.Fatalf("expected report stored for %s", key)
	}
	if len(stored.Data.Projects) != 1 || stored.Data.Projects[0].Status != string(projectdomain.StageBuild) {
		t.Fatalf("expected only the open project, got %+v", stored.Data.Projects)
	}
	if stored.Data.Payments.PaidTotal != 2500 || stored.Data.Subscription == nil {
		t.Fatalf("expected payments and subscription in report data, got %+v", stored.Data)
	}
	if stored.Insights.PerformanceScore != 100 {
		t.Fatalf("expected score clamped to 100, got %d", stored.Insights.PerformanceScore)
	}
	if f.store.pdfs[resp.ReportID] != key {
		t.Fatalf("expected pdf linked at %s, got %q", key, f.store.pdfs[resp.ReportID])
	}
	if f.objects.Types[key] != "application/pdf" {
		t.Fatalf("expected pdf uploaded, got type %q", f.objects.Types[key])
	}
	if resp.PDFURL == "" || resp.Summary == "" {
		t.Fatalf("expected pdf url and summary in response, got %+v", resp)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].to != "billing@globex.com" {
		t.Fatalf("expected report mailed to billing email, got %+v", f.mailer.sent)
	}
	if len(f.mailer.sent[0].attachments) != 1 || f.mailer.sent[0].attachments[0].FileName != "report-2026-02.pdf" {
		t.Fatalf("expected pdf attachment, got %+v", f.mailer.sent[0].attachments)
	}
	if f.recorder.Count(audit.ActionMonthlyReportGenerated) != 1 {
		t.Fatalf("expected one report audit, got %d", f.recorder.Count(audit.ActionMonthlyReportGenerated))
	}
}

func TestGenerate_QueriesTheWholeMonth(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Generate(context.Background(), f.client.ID, f.period); err != nil {
		t.Fatalf("generate: %v", err)
	}
	wantFrom := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !f.billing.from.Equal(wantFrom) || !f.billing.to.Equal(wantTo) {
		t.Fatalf("expected [%s, %s), got [%s, %s)", wantFrom, wantTo, f.billing.from, f.billing.to)
	}
	facts := f.analyst.facts[0]
	if facts.PaidTotal != money.Format(2500, money.DefaultCurrency) || facts.SubscriptionState != "active" {
		t.Fatalf("unexpected facts: %+v", facts)
	}
}

func TestGenerate_RerunReplacesReport(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.Generate(context.Background(), f.client.ID, f.period)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := f.svc.Generate(context.Background(), f.client.ID, f.period)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.ReportID != second.ReportID || len(f.store.reports) != 1 {
		t.Fatalf("expected one report per client month, got %d (%s vs %s)", len(f.store.reports), first.ReportID, second.ReportID)
	}
}

func TestGenerate_WithoutPDFStillMails(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = pdf.ErrDisabled

	resp, err := f.svc.Generate(context.Background(), f.client.ID, f.period)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.PDFURL != "" || len(f.objects.Objects) != 0 {
		t.Fatalf("expected no document, got url %q and %d objects", resp.PDFURL, len(f.objects.Objects))
	}
	if len(f.mailer.sent) != 1 || len(f.mailer.sent[0].attachments) != 0 {
		t.Fatalf("expected mail without attachment, got %+v", f.mailer.sent)
	}
}

func TestGenerate_NoSubscription(t *testing.T) {
	f := newFixture(t)
	delete(f.billing.subs, f.client.ID)

	if _, err := f.svc.Generate(context.Background(), f.client.ID, f.period); err != nil {
		t.Fatalf("generate: %v", err)
	}
	stored := f.store.reports[domain.DocumentKey(f.client.ID, f.period)]
	if stored.Data.Subscription != nil {
		t.Fatalf("expected no subscription snapshot, got %+v", stored.Data.Subscription)
	}
	if f.analyst.facts[0].SubscriptionState != "none" {
		t.Fatalf("expected subscription state none, got %q", f.analyst.facts[0].SubscriptionState)
	}
}

func TestGenerate_Errors(t *testing.T) {
	cases := []struct {
		name string
		prep func(f *fixture) uuid.UUID
		want apperr.Kind
	}{
		{"unknown client", func(f *fixture) uuid.UUID { return uuid.New() }, apperr.KindNotFound},
		{"analyst down", func(f *fixture) uuid.UUID {
			f.analyst.fail[f.client.Company] = true
			return f.client.ID
		}, apperr.KindExternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			id := tc.prep(f)
			_, err := f.svc.Generate(context.Background(), id, f.period)
			if !apperr.Is(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
			if len(f.store.reports) != 0 || len(f.mailer.sent) != 0 {
				t.Fatalf("expected nothing stored or mailed, got %d reports and %d mails", len(f.store.reports), len(f.mailer.sent))
			}
		})
	}
}

func TestGenerateAll_CountsFailuresAndSkipsUnplanned(t *testing.T) {
	f := newFixture(t)
	failing := clientdomain.Client{ID: uuid.New(), Company: "Initech", BillingEmail: "ap@initech.com", Plan: clientdomain.PlanCareBasic}
	unplanned := clientdomain.Client{ID: uuid.New(), Company: "Umbrella", BillingEmail: "ap@umbrella.com", Plan: clientdomain.PlanNone}
	f.clients.clients = append(f.clients.clients, failing, unplanned)
	f.analyst.fail[failing.Company] = true

	batch, err := f.svc.GenerateAll(context.Background(), f.period)
	if err != nil {
		t.Fatalf("generate all: %v", err)
	}
	if batch.Clients != 2 || batch.Generated != 1 || batch.Failed != 1 {
		t.Fatalf("expected 2 clients, 1 generated, 1 failed, got %+v", batch)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].to != f.client.BillingEmail {
		t.Fatalf("expected only the healthy client mailed, got %+v", f.mailer.sent)
	}
}

func TestResolvePeriod(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.ResolvePeriod(0, 0)
	if err != nil || p != (domain.Period{Year: 2026, Month: 2}) {
		t.Fatalf("expected previous month, got %+v (%v)", p, err)
	}
	if _, err := f.svc.ResolvePeriod(2026, 13); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
