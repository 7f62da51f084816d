package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agency_portal_backend/internal/email"
	"agency_portal_backend/internal/events"
	leaddomain "agency_portal_backend/internal/leads/domain"
	"agency_portal_backend/internal/notification/inapp"
	"agency_portal_backend/internal/notification/outbox"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type testAgencyConfig struct{ team string }

func (testAgencyConfig) GetAgencyName() string                { return "Studio" }
func (testAgencyConfig) GetAppBaseURL() string                { return "https://app.example.com" }
func (c testAgencyConfig) GetTeamNotificationEmail() string   { return c.team }
func (testAgencyConfig) GetPhoneDefaultRegion() string        { return "US" }
func (testAgencyConfig) GetProvisioningRepoOrg() string       { return "studio" }
func (testAgencyConfig) GetProvisioningStagingDomain() string { return "staging.example.com" }
func (testAgencyConfig) GetLeadFollowUpDelay() time.Duration  { return 48 * time.Hour }

type memInApp struct {
	mu    sync.Mutex
	items []inapp.Notification
}

func (m *memInApp) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := inapp.Notification{ID: uuid.New(), Type: p.Type, LeadID: p.LeadID, Message: p.Message, CreatedAt: time.Now()}
	m.items = append(m.items, n)
	return n, nil
}

func (m *memInApp) ListRecent(_ context.Context, limit int) ([]inapp.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]inapp.Notification(nil), m.items[:min(limit, len(m.items))]...), nil
}

func (m *memInApp) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].SentAt = &at
		}
	}
	return nil
}

type memScheduled struct {
	records map[uuid.UUID]outbox.Record
}

func (m *memScheduled) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	id := uuid.New()
	m.records[id] = outbox.Record{ID: id, LeadID: p.LeadID, Type: p.Type, Email: p.Email, Name: p.Name, ScheduledFor: p.ScheduledFor}
	return id, nil
}

func (m *memScheduled) GetByID(_ context.Context, id uuid.UUID) (outbox.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return outbox.Record{}, outbox.ErrNotFound
	}
	return rec, nil
}

func (m *memScheduled) MarkSent(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	rec := m.records[id]
	if rec.Done() {
		return false, nil
	}
	rec.SentAt = &at
	m.records[id] = rec
	return true, nil
}

func (m *memScheduled) MarkSkipped(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	rec := m.records[id]
	if rec.Done() {
		return false, nil
	}
	rec.SkippedAt = &at
	m.records[id] = rec
	return true, nil
}

type fakeLeads struct {
	leads  map[uuid.UUID]leaddomain.Lead
	booked map[uuid.UUID]bool
}

func (f fakeLeads) GetByID(_ context.Context, id uuid.UUID) (leaddomain.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return leaddomain.Lead{}, errors.New("lead not found")
	}
	return l, nil
}

func (f fakeLeads) HasMeetingBooked(_ context.Context, id uuid.UUID) (bool, error) {
	return f.booked[id], nil
}

type testSender struct {
	email.NoopSender
	followUps []string
	alerts    []email.LeadAlert
	proposals []email.ProposalMail
	fail      error
}

func (s *testSender) SendLeadFollowUp(_ context.Context, to, _, bookingURL string) error {
	if s.fail != nil {
		return s.fail
	}
	s.followUps = append(s.followUps, to+" "+bookingURL)
	return nil
}

func (s *testSender) SendHighValueLeadAlert(_ context.Context, _ string, alert email.LeadAlert) error {
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *testSender) SendProposal(_ context.Context, _ string, mail email.ProposalMail) error {
	s.proposals = append(s.proposals, mail)
	return nil
}

type fakeQueue struct {
	ids   []uuid.UUID
	runAt []time.Time
}

func (q *fakeQueue) EnqueueLeadFollowUp(_ context.Context, id uuid.UUID, runAt time.Time) error {
	q.ids = append(q.ids, id)
	q.runAt = append(q.runAt, runAt)
	return nil
}

type fixture struct {
	m         *Module
	inApp     *memInApp
	scheduled *memScheduled
	leads     fakeLeads
	sender    *testSender
	queue     *fakeQueue
	lead      leaddomain.Lead
	clock     time.Time
}

func newFixture(team string) *fixture {
	lead := leaddomain.Lead{ID: uuid.New(), Name: "Jane Doe", Company: "Acme Ltd", Email: "jane@acme.com", BudgetRange: "50k-100k", Source: "referral"}
	f := &fixture{
		inApp:     &memInApp{},
		scheduled: &memScheduled{records: map[uuid.UUID]outbox.Record{}},
		leads:     fakeLeads{leads: map[uuid.UUID]leaddomain.Lead{lead.ID: lead}, booked: map[uuid.UUID]bool{}},
		sender:    &testSender{},
		queue:     &fakeQueue{},
		lead:      lead,
		clock:     time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC),
	}
	f.m = newModule(f.inApp, f.scheduled, f.sender, testAgencyConfig{team: team}, f.leads, logger.NewNop())
	f.m.SetFollowUpQueue(f.queue)
	f.m.now = func() time.Time { return f.clock }
	return f
}

func TestScheduleLeadFollowUp_StoresAndQueuesAfterDelay(t *testing.T) {
	f := newFixture("")

	if err := f.m.ScheduleLeadFollowUp(context.Background(), f.lead.ID, f.lead.Email, f.lead.Name); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(f.queue.ids) != 1 {
		t.Fatalf("expected one queued task, got %d", len(f.queue.ids))
	}
	rec := f.scheduled.records[f.queue.ids[0]]
	want := f.clock.Add(48 * time.Hour)
	if rec.Type != outbox.TypeFollowUp || !rec.ScheduledFor.Equal(want) || !f.queue.runAt[0].Equal(want) {
		t.Fatalf("expected follow_up at %s, got %+v queued for %s", want, rec, f.queue.runAt[0])
	}
}

func TestSendFollowUp(t *testing.T) {
	f := newFixture("")
	ctx := context.Background()
	if err := f.m.ScheduleLeadFollowUp(ctx, f.lead.ID, f.lead.Email, f.lead.Name); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	id := f.queue.ids[0]

	if err := f.m.SendFollowUp(ctx, id); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := f.m.SendFollowUp(ctx, id); err != nil {
		t.Fatalf("second send: %v", err)
	}

	if len(f.sender.followUps) != 1 {
		t.Fatalf("expected exactly one follow-up mail, got %d", len(f.sender.followUps))
	}
	want := "jane@acme.com https://app.example.com/schedule?lead=" + f.lead.ID.String()
	if f.sender.followUps[0] != want {
		t.Fatalf("expected %q, got %q", want, f.sender.followUps[0])
	}
	if f.scheduled.records[id].SentAt == nil {
		t.Fatal("expected scheduled email marked sent")
	}
}

func TestSendFollowUp_SkippedWhenMeetingBooked(t *testing.T) {
	f := newFixture("")
	ctx := context.Background()
	if err := f.m.ScheduleLeadFollowUp(ctx, f.lead.ID, f.lead.Email, f.lead.Name); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	f.leads.booked[f.lead.ID] = true

	if err := f.m.SendFollowUp(ctx, f.queue.ids[0]); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(f.sender.followUps) != 0 {
		t.Fatalf("expected no mail, got %v", f.sender.followUps)
	}
	rec := f.scheduled.records[f.queue.ids[0]]
	if rec.SkippedAt == nil || rec.SentAt != nil {
		t.Fatalf("expected skipped record, got %+v", rec)
	}
}

func TestSendFollowUp_MailFailureKeepsRecordPending(t *testing.T) {
	f := newFixture("")
	ctx := context.Background()
	if err := f.m.ScheduleLeadFollowUp(ctx, f.lead.ID, f.lead.Email, f.lead.Name); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	f.sender.fail = errors.New("smtp down")

	if err := f.m.SendFollowUp(ctx, f.queue.ids[0]); err == nil {
		t.Fatal("expected error so the task is retried")
	}
	if f.scheduled.records[f.queue.ids[0]].Done() {
		t.Fatal("expected record still pending")
	}
}

func TestHandleLeadQualifiedHighValue(t *testing.T) {
	f := newFixture("team@studio.test")

	err := f.m.Handle(context.Background(), events.LeadQualifiedHighValue{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    f.lead.ID,
		Name:      f.lead.Name,
		Company:   f.lead.Company,
		Score:     92,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(f.inApp.items) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.inApp.items))
	}
	n := f.inApp.items[0]
	if n.Type != inapp.TypeHighValueLead || n.Message != "High-value lead: Jane Doe from Acme Ltd (Score: 92)" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.SentAt == nil {
		t.Fatal("expected notification marked sent after team mail")
	}
	if len(f.sender.alerts) != 1 || f.sender.alerts[0].Budget != "50k-100k" || f.sender.alerts[0].Email != "jane@acme.com" {
		t.Fatalf("expected alert with lead details, got %+v", f.sender.alerts)
	}
}

func TestHandleLeadQualifiedHighValue_NoTeamAddress(t *testing.T) {
	f := newFixture("")

	err := f.m.Handle(context.Background(), events.LeadQualifiedHighValue{LeadID: f.lead.ID, Name: "Jane", Company: "Acme", Score: 85})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.sender.alerts) != 0 {
		t.Fatalf("expected no mail, got %d", len(f.sender.alerts))
	}
	if len(f.inApp.items) != 1 || f.inApp.items[0].SentAt != nil {
		t.Fatalf("expected unsent notification, got %+v", f.inApp.items)
	}
}

func TestHandleProposalSent(t *testing.T) {
	f := newFixture("")

	err := f.m.Handle(context.Background(), events.ProposalSent{
		ProposalID:     uuid.New(),
		ProposalNumber: "PROP-2026-0001",
		RecipientName:  "Jane",
		RecipientEmail: "jane@acme.com",
		Price:          10000,
		Currency:       "USD",
		CheckoutURL:    "https://checkout.test/cs_1",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.sender.proposals) != 1 {
		t.Fatalf("expected one proposal mail, got %d", len(f.sender.proposals))
	}
	mail := f.sender.proposals[0]
	if mail.AgencyName != "Studio" || mail.CheckoutURL != "https://checkout.test/cs_1" || mail.Price == mail.Deposit {
		t.Fatalf("unexpected proposal mail: %+v", mail)
	}
}

func TestHandleLeadCreated_StoresNotification(t *testing.T) {
	f := newFixture("")
	err := f.m.Handle(context.Background(), events.LeadCreated{LeadID: f.lead.ID, Name: "Jane Doe", Score: 64})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.inApp.items) != 1 || f.inApp.items[0].Type != inapp.TypeNewLead {
		t.Fatalf("expected new lead notification, got %+v", f.inApp.items)
	}
}
