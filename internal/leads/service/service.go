package service

import (
	"context"
	"errors"
	"strings"

	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/events"
	"agency_portal_backend/internal/leads/domain"
	"agency_portal_backend/internal/leads/repository"
	"agency_portal_backend/internal/leads/scoring"
	"agency_portal_backend/internal/leads/transport"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/phone"
	"agency_portal_backend/platform/sanitize"

	"github.com/google/uuid"
)

const msgDuplicateLead = "a lead with this email and company already exists"

// Store is the persistence the lead service needs.
type Store interface {
	Create(ctx context.Context, lead domain.Lead, onCreated db.TxHook) (domain.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ExistsActiveFingerprint(ctx context.Context, fingerprint string) (bool, error)
	UpdateStatus(ctx context.Context, q db.Querier, id uuid.UUID, from, to domain.Status) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// FollowUpScheduler queues the intake follow-up mail.
type FollowUpScheduler interface {
	ScheduleLeadFollowUp(ctx context.Context, leadID uuid.UUID, email, name string) error
}

// Service runs the lead lifecycle: intake, scoring, dedup and qualification.
type Service struct {
	store     Store
	followUps FollowUpScheduler
	audit     audit.Recorder
	bus       events.Bus
	region    string
	log       *logger.Logger
}

// New creates the lead service. region is the default phone region.
func New(store Store, followUps FollowUpScheduler, recorder audit.Recorder, bus events.Bus, region string, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		followUps: followUps,
		audit:     recorder,
		bus:       bus,
		region:    region,
		log:       log,
	}
}

// Create stores a new lead unless an active lead with the same email and
// company exists. High scorers are qualified straight away.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.CreateLeadResponse, error) {
	fingerprint := domain.Fingerprint(req.Email, req.Company)

	exists, err := s.store.ExistsActiveFingerprint(ctx, fingerprint)
	if err != nil {
		return transport.CreateLeadResponse{}, apperr.Internal("check duplicate lead", err)
	}
	if exists {
		return transport.CreateLeadResponse{}, apperr.Conflict(msgDuplicateLead)
	}

	var utm domain.UTM
	if req.UTM != nil {
		utm = domain.UTM{Source: req.UTM.Source, Medium: req.UTM.Medium, Campaign: req.UTM.Campaign}
	}

	score := scoring.Score(scoring.Submission{
		BudgetRange: req.BudgetRange,
		Timeline:    req.Timeline,
		Source:      req.Source,
		Email:       req.Email,
		Notes:       req.Notes,
		UTMCampaign: utm.Campaign,
	})

	newLead := domain.Lead{
		ID:          uuid.New(),
		Name:        sanitize.Text(req.Name),
		Company:     sanitize.Text(req.Company),
		Email:       strings.TrimSpace(req.Email),
		Phone:       phone.NormalizeE164(req.Phone, s.region),
		Source:      strings.ToLower(strings.TrimSpace(req.Source)),
		UTM:         utm,
		BudgetRange: req.BudgetRange,
		ProjectType: req.ProjectType,
		Timeline:    req.Timeline,
		Notes:       domain.EnrichNotes(sanitize.Text(req.Notes), req.BudgetRange, req.ProjectType, req.Timeline),
		Fingerprint: fingerprint,
		Score:       score,
		Status:      domain.StatusNew,
	}
	lead, err := s.store.Create(ctx, newLead, func(q db.Querier) error {
		return s.audit.RecordTx(ctx, q, audit.Entry{
			Action:  audit.ActionLeadCreated,
			Payload: map[string]any{"leadId": newLead.ID.String(), "source": newLead.Source, "score": score},
		})
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return transport.CreateLeadResponse{}, apperr.Conflict(msgDuplicateLead)
	}
	if err != nil {
		return transport.CreateLeadResponse{}, apperr.Internal("create lead", err)
	}

	// Scheduling failures are logged only; the lead is already stored.
	if err := s.followUps.ScheduleLeadFollowUp(ctx, lead.ID, lead.Email, lead.Name); err != nil {
		s.log.WithContext(ctx).Warn("failed to schedule lead follow-up", "leadId", lead.ID, "error", err)
	}

	if score >= domain.AutoQualifyScore {
		if err := s.qualify(ctx, lead); err != nil {
			return transport.CreateLeadResponse{}, err
		}
		lead.Status = domain.StatusQualified
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Name:      lead.Name,
		Email:     lead.Email,
		Score:     score,
	})

	return transport.CreateLeadResponse{
		Success: true,
		LeadID:  lead.ID,
		Score:   score,
		Status:  string(lead.Status),
		Message: "Lead created successfully",
	}, nil
}

func (s *Service) qualify(ctx context.Context, lead domain.Lead) error {
	err := s.store.UpdateStatus(ctx, nil, lead.ID, domain.StatusNew, domain.StatusQualified)
	if errors.Is(err, repository.ErrStatusChanged) {
		return nil
	}
	if err != nil {
		return apperr.Internal("qualify lead", err)
	}

	if err := s.audit.Record(ctx, audit.Entry{
		Action:  audit.ActionLeadQualified,
		Payload: map[string]any{"leadId": lead.ID.String(), "score": lead.Score, "reason": "score"},
	}); err != nil {
		return apperr.Internal("record lead qualification", err)
	}

	s.bus.Publish(ctx, events.LeadQualifiedHighValue{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Name:      lead.Name,
		Company:   lead.Company,
		Score:     lead.Score,
	})
	return nil
}

// GetByID returns a lead for staff.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Internal("load lead", err)
	}
	return toResponse(lead), nil
}

// UpdateStatus applies a staff status change if the transition table allows it.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req transport.UpdateLeadStatusRequest) (transport.LeadResponse, error) {
	lead, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Internal("load lead", err)
	}

	to := domain.Status(req.Status)
	if !domain.CanTransition(lead.Status, to) {
		return transport.LeadResponse{}, apperr.Validation("lead cannot move from " + string(lead.Status) + " to " + string(to))
	}

	err = s.store.UpdateStatus(ctx, nil, id, lead.Status, to)
	if errors.Is(err, repository.ErrStatusChanged) {
		return transport.LeadResponse{}, apperr.Conflict("lead status changed, reload and retry")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Internal("update lead status", err)
	}

	if err := s.audit.Record(ctx, audit.Entry{
		Action:  audit.ActionLeadStatusChanged,
		Payload: map[string]any{"leadId": id.String(), "from": string(lead.Status), "to": string(to)},
	}); err != nil {
		return transport.LeadResponse{}, apperr.Internal("record lead status change", err)
	}

	lead.Status = to
	return toResponse(lead), nil
}

// Delete soft-deletes a lead. Its fingerprint becomes available again.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.SoftDelete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	if err != nil {
		return apperr.Internal("delete lead", err)
	}
	return s.audit.Record(ctx, audit.Entry{
		Action:  audit.ActionLeadDeleted,
		Payload: map[string]any{"leadId": id.String()},
	})
}

func toResponse(l domain.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:              l.ID,
		Name:            l.Name,
		Company:         l.Company,
		Email:           l.Email,
		Phone:           l.Phone,
		Source:          l.Source,
		UTM:             transport.UTMRequest{Source: l.UTM.Source, Medium: l.UTM.Medium, Campaign: l.UTM.Campaign},
		BudgetRange:     l.BudgetRange,
		ProjectType:     l.ProjectType,
		Timeline:        l.Timeline,
		Notes:           l.Notes,
		Score:           l.Score,
		Status:          string(l.Status),
		BookedMeetingID: l.BookedMeetingID,
		ClientID:        l.ClientID,
		ProjectID:       l.ProjectID,
		ConvertedAt:     l.ConvertedAt,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}
