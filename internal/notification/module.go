// Package notification reacts to domain events with mails, stored staff
// notifications and live updates. Domain modules publish events and never
// talk to the mailer directly.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingdomain "agency_portal_backend/internal/billing/domain"
	"agency_portal_backend/internal/email"
	"agency_portal_backend/internal/events"
	apphttp "agency_portal_backend/internal/http"
	leaddomain "agency_portal_backend/internal/leads/domain"
	notifhandler "agency_portal_backend/internal/notification/handler"
	"agency_portal_backend/internal/notification/inapp"
	"agency_portal_backend/internal/notification/outbox"
	"agency_portal_backend/internal/notification/sse"
	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadReader loads lead details for mails.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (leaddomain.Lead, error)
	HasMeetingBooked(ctx context.Context, id uuid.UUID) (bool, error)
}

// ScheduledEmails persists mails sent later.
type ScheduledEmails interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkSkipped(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// FollowUpQueue delivers a scheduled mail id back to the worker at runAt.
type FollowUpQueue interface {
	EnqueueLeadFollowUp(ctx context.Context, scheduledEmailID uuid.UUID, runAt time.Time) error
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender       email.Sender
	cfg          config.AgencyConfig
	leads        LeadReader
	scheduled    ScheduledEmails
	queue        FollowUpQueue
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
	stream       *sse.Service
	now          func() time.Time
	log          *logger.Logger
}

// New creates the notification module over pool.
func New(pool *pgxpool.Pool, sender email.Sender, cfg config.AgencyConfig, leads LeadReader, log *logger.Logger) *Module {
	return newModule(inapp.NewRepository(pool), outbox.New(pool), sender, cfg, leads, log)
}

func newModule(store inapp.Store, scheduled ScheduledEmails, sender email.Sender, cfg config.AgencyConfig, leads LeadReader, log *logger.Logger) *Module {
	stream := sse.New(log)
	inAppSvc := inapp.NewService(store, log)
	inAppSvc.SetSSE(stream)

	return &Module{
		sender:       sender,
		cfg:          cfg,
		leads:        leads,
		scheduled:    scheduled,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc, stream),
		stream:       stream,
		now:          time.Now,
		log:          log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers the staff notification feed and live stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.inAppHandler.RegisterRoutes(ctx.Staff.Group("/notifications"))
}

// SetFollowUpQueue injects the task queue. Without one, follow-ups are
// stored and left for the sweeper.
func (m *Module) SetFollowUpQueue(q FollowUpQueue) { m.queue = q }

// RegisterHandlers subscribes to the domain events this module reacts to.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), m)
	bus.Subscribe(events.LeadQualifiedHighValue{}.EventName(), m)
	bus.Subscribe(events.ProposalSent{}.EventName(), m)
	bus.Subscribe(events.ProposalAccepted{}.EventName(), m)
	bus.Subscribe(events.ProjectStageAdvanced{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		return m.handleLeadCreated(ctx, e)
	case events.LeadQualifiedHighValue:
		return m.handleLeadQualifiedHighValue(ctx, e)
	case events.ProposalSent:
		return m.handleProposalSent(ctx, e)
	case events.ProposalAccepted:
		return m.handleProposalAccepted(ctx, e)
	case events.ProjectStageAdvanced:
		m.stream.Broadcast(sse.Event{Type: sse.EventStageAdvanced, Message: fmt.Sprintf("Project moved from %s to %s", e.From, e.To), Data: e})
		return nil
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// ScheduleLeadFollowUp stores the follow-up mail for a new lead and queues
// it for after the configured delay.
func (m *Module) ScheduleLeadFollowUp(ctx context.Context, leadID uuid.UUID, toEmail, name string) error {
	runAt := m.now().UTC().Add(m.cfg.GetLeadFollowUpDelay())
	id, err := m.scheduled.Insert(ctx, outbox.InsertParams{
		LeadID:       leadID,
		Type:         outbox.TypeFollowUp,
		Email:        toEmail,
		Name:         name,
		ScheduledFor: runAt,
	})
	if err != nil {
		return err
	}
	if m.queue == nil {
		m.log.WithContext(ctx).Debug("no task queue, follow-up left for sweeper", "scheduledEmailId", id)
		return nil
	}
	return m.queue.EnqueueLeadFollowUp(ctx, id, runAt)
}

// SendFollowUp delivers a stored follow-up unless the lead booked a call in
// the meantime. Mails already sent or skipped are left alone.
func (m *Module) SendFollowUp(ctx context.Context, scheduledEmailID uuid.UUID) error {
	log := m.log.WithContext(ctx).With("scheduledEmailId", scheduledEmailID)

	rec, err := m.scheduled.GetByID(ctx, scheduledEmailID)
	if errors.Is(err, outbox.ErrNotFound) {
		log.Warn("scheduled email vanished")
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Done() {
		return nil
	}

	booked, err := m.leads.HasMeetingBooked(ctx, rec.LeadID)
	if err != nil {
		return err
	}
	if booked {
		_, err := m.scheduled.MarkSkipped(ctx, rec.ID, m.now().UTC())
		log.Info("lead booked a meeting, follow-up skipped", "leadId", rec.LeadID)
		return err
	}

	if err := m.sender.SendLeadFollowUp(ctx, rec.Email, rec.Name, m.bookingURL(rec.LeadID)); err != nil {
		return err
	}
	if _, err := m.scheduled.MarkSent(ctx, rec.ID, m.now().UTC()); err != nil {
		return err
	}
	log.Info("lead follow-up sent", "leadId", rec.LeadID)
	return nil
}

func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadCreated) error {
	_, err := m.inAppService.Send(ctx, inapp.CreateParams{
		Type:    inapp.TypeNewLead,
		LeadID:  &e.LeadID,
		Message: fmt.Sprintf("New lead: %s (Score: %d)", e.Name, e.Score),
	})
	return err
}

func (m *Module) handleLeadQualifiedHighValue(ctx context.Context, e events.LeadQualifiedHighValue) error {
	notif, err := m.inAppService.Send(ctx, inapp.CreateParams{
		Type:    inapp.TypeHighValueLead,
		LeadID:  &e.LeadID,
		Message: fmt.Sprintf("High-value lead: %s from %s (Score: %d)", e.Name, e.Company, e.Score),
	})
	if err != nil {
		return err
	}

	to := m.cfg.GetTeamNotificationEmail()
	if to == "" {
		m.log.WithContext(ctx).Debug("no team address configured, high-value alert kept in app", "leadId", e.LeadID)
		return nil
	}

	alert := email.LeadAlert{
		LeadID:  e.LeadID.String(),
		Name:    e.Name,
		Company: e.Company,
		Score:   e.Score,
		LeadURL: fmt.Sprintf("%s/admin/leads/%s", m.cfg.GetAppBaseURL(), e.LeadID),
	}
	if lead, err := m.leads.GetByID(ctx, e.LeadID); err == nil {
		alert.Email = lead.Email
		alert.Budget = lead.BudgetRange
		alert.Source = lead.Source
	} else {
		m.log.WithContext(ctx).Warn("failed to load lead for alert", "leadId", e.LeadID, "error", err)
	}

	if err := m.sender.SendHighValueLeadAlert(ctx, to, alert); err != nil {
		return err
	}
	return m.inAppService.MarkSent(ctx, notif.ID, m.now().UTC())
}

func (m *Module) handleProposalSent(ctx context.Context, e events.ProposalSent) error {
	if e.RecipientEmail == "" {
		m.log.WithContext(ctx).Warn("proposal has no recipient, mail skipped", "proposalId", e.ProposalID)
		return nil
	}
	return m.sender.SendProposal(ctx, e.RecipientEmail, email.ProposalMail{
		RecipientName:  e.RecipientName,
		AgencyName:     m.cfg.GetAgencyName(),
		ProposalNumber: e.ProposalNumber,
		Price:          money.Format(e.Price, e.Currency),
		Deposit:        money.Format(billingdomain.DepositAmount(e.Price), e.Currency),
		CheckoutURL:    e.CheckoutURL,
	})
}

func (m *Module) handleProposalAccepted(ctx context.Context, e events.ProposalAccepted) error {
	_, err := m.inAppService.Send(ctx, inapp.CreateParams{
		Type:    inapp.TypeProposalAccepted,
		Message: fmt.Sprintf("Proposal %s accepted", e.ProposalNumber),
	})
	return err
}

func (m *Module) bookingURL(leadID uuid.UUID) string {
	return fmt.Sprintf("%s/schedule?lead=%s", m.cfg.GetAppBaseURL(), leadID)
}
