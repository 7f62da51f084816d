package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/clients/domain"
	"agency_portal_backend/internal/events"
	leaddomain "agency_portal_backend/internal/leads/domain"
	leadrepo "agency_portal_backend/internal/leads/repository"
	projectdomain "agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadStore is the lead persistence conversion needs.
type LeadStore interface {
	GetByIDTx(ctx context.Context, q db.Querier, id uuid.UUID) (leaddomain.Lead, error)
	MarkConverted(ctx context.Context, q db.Querier, id, clientID, projectID uuid.UUID, at time.Time) (bool, error)
}

type ClientWriter interface {
	Create(ctx context.Context, q db.Querier, c domain.Client) error
}

type ProjectWriter interface {
	Create(ctx context.Context, q db.Querier, p projectdomain.Project) error
}

// ConversionInput carries what the trigger knows about the engagement.
// An empty Package is derived from KeyPoints.
type ConversionInput struct {
	Package       projectdomain.Package
	KeyPoints     []string
	ClientNotes   string
	InternalNotes string
}

// ConversionResult identifies the client and project of a converted lead.
// Created is false when the lead had been converted before.
type ConversionResult struct {
	LeadID    uuid.UUID
	ClientID  uuid.UUID
	ProjectID uuid.UUID
	Created   bool
}

// Converter turns a lead into exactly one client and one intake project.
type Converter struct {
	tx       db.Transactor
	leads    LeadStore
	clients  ClientWriter
	projects ProjectWriter
	audit    audit.Recorder
	bus      events.Bus
	now      func() time.Time
	log      *logger.Logger
}

func NewConverter(tx db.Transactor, leads LeadStore, clients ClientWriter, projects ProjectWriter, recorder audit.Recorder, bus events.Bus, log *logger.Logger) *Converter {
	return &Converter{
		tx:       tx,
		leads:    leads,
		clients:  clients,
		projects: projects,
		audit:    recorder,
		bus:      bus,
		now:      time.Now,
		log:      log,
	}
}

// Convert runs ConvertTx in its own transaction and announces the result.
func (c *Converter) Convert(ctx context.Context, leadID uuid.UUID, in ConversionInput) (ConversionResult, error) {
	var result ConversionResult
	err := c.tx.WithinTx(ctx, func(q db.Querier) error {
		var err error
		result, err = c.ConvertTx(ctx, q, leadID, in)
		return err
	})
	if err != nil {
		return ConversionResult{}, err
	}
	c.Announce(ctx, result)
	return result, nil
}

// ConvertTx converts the lead inside the caller's transaction. The lead row
// is locked first; an already converted lead returns its existing ids.
func (c *Converter) ConvertTx(ctx context.Context, q db.Querier, leadID uuid.UUID, in ConversionInput) (ConversionResult, error) {
	lead, err := c.leads.GetByIDTx(ctx, q, leadID)
	if errors.Is(err, leadrepo.ErrNotFound) {
		return ConversionResult{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return ConversionResult{}, apperr.Internal("load lead", err)
	}

	if lead.IsConverted() && lead.ClientID != nil && lead.ProjectID != nil {
		return ConversionResult{LeadID: lead.ID, ClientID: *lead.ClientID, ProjectID: *lead.ProjectID}, nil
	}

	pkg := in.Package
	if !pkg.IsValid() {
		pkg = domain.DeterminePackage(in.KeyPoints)
	}

	now := c.now().UTC()
	client := domain.Client{
		ID:      uuid.New(),
		Company: firstNonEmpty(lead.Company, lead.Name),
		Contacts: []domain.Contact{{
			Name:  lead.Name,
			Email: lead.Email,
			Phone: lead.Phone,
			Role:  domain.PrimaryContactRole,
		}},
		BillingEmail: lead.Email,
		Plan:         domain.PlanNone,
		SourceLeadID: &lead.ID,
		Notes:        in.ClientNotes,
	}
	if err := c.clients.Create(ctx, q, client); err != nil {
		return ConversionResult{}, apperr.Internal("create client", err)
	}

	internalNotes := strings.TrimSpace(fmt.Sprintf("Converted from lead %s. %s", lead.ID, in.InternalNotes))
	project := projectdomain.Project{
		ID:            uuid.New(),
		ClientID:      client.ID,
		Package:       pkg,
		Status:        projectdomain.StageIntake,
		Milestones:    map[projectdomain.Stage]time.Time{projectdomain.StageIntake: now},
		Tech:          projectdomain.DefaultTech,
		InternalNotes: internalNotes,
	}
	if err := c.projects.Create(ctx, q, project); err != nil {
		return ConversionResult{}, apperr.Internal("create project", err)
	}

	marked, err := c.leads.MarkConverted(ctx, q, lead.ID, client.ID, project.ID, now)
	if err != nil {
		return ConversionResult{}, apperr.Internal("mark lead converted", err)
	}
	if !marked {
		return ConversionResult{}, apperr.Conflict("lead was converted concurrently")
	}

	if err := c.audit.RecordTx(ctx, q, audit.Entry{
		Action: audit.ActionLeadConverted,
		Payload: map[string]any{
			"leadId":    lead.ID.String(),
			"clientId":  client.ID.String(),
			"projectId": project.ID.String(),
			"package":   string(pkg),
		},
		ClientID:  &client.ID,
		ProjectID: &project.ID,
	}); err != nil {
		return ConversionResult{}, apperr.Internal("record conversion", err)
	}

	return ConversionResult{LeadID: lead.ID, ClientID: client.ID, ProjectID: project.ID, Created: true}, nil
}

// Announce publishes LeadConverted for a conversion that created records.
// Call it after the transaction commits.
func (c *Converter) Announce(ctx context.Context, r ConversionResult) {
	if !r.Created {
		return
	}
	c.log.WithContext(ctx).Info("lead converted", "leadId", r.LeadID, "clientId", r.ClientID, "projectId", r.ProjectID)
	c.bus.Publish(ctx, events.LeadConverted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    r.LeadID,
		ClientID:  r.ClientID,
		ProjectID: r.ProjectID,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
