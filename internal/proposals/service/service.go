package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agency_portal_backend/internal/adapters/payments"
	"agency_portal_backend/internal/adapters/storage"
	"agency_portal_backend/internal/audit"
	billingdomain "agency_portal_backend/internal/billing/domain"
	clientdomain "agency_portal_backend/internal/clients/domain"
	clientrepo "agency_portal_backend/internal/clients/repository"
	clientservice "agency_portal_backend/internal/clients/service"
	"agency_portal_backend/internal/copywriter"
	"agency_portal_backend/internal/events"
	leaddomain "agency_portal_backend/internal/leads/domain"
	leadrepo "agency_portal_backend/internal/leads/repository"
	"agency_portal_backend/internal/pdf"
	projectdomain "agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/internal/proposals/catalog"
	"agency_portal_backend/internal/proposals/domain"
	"agency_portal_backend/internal/proposals/repository"
	"agency_portal_backend/internal/proposals/transport"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/money"

	"github.com/google/uuid"
)

const msgProposalNotFound = "proposal not found"

// Store is the proposal persistence.
type Store interface {
	NextSequence(ctx context.Context, year int) (int, error)
	Create(ctx context.Context, p domain.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Proposal, error)
	GetByIDTx(ctx context.Context, q db.Querier, id uuid.UUID) (domain.Proposal, error)
	SetPDF(ctx context.Context, id uuid.UUID, key string) error
	MarkSent(ctx context.Context, id uuid.UUID, sessionID, checkoutURL string, at time.Time) (bool, error)
	Decline(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Sign(ctx context.Context, q db.Querier, id uuid.UUID, at time.Time) (bool, error)
}

type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (leaddomain.Lead, error)
	SetStatus(ctx context.Context, q db.Querier, id uuid.UUID, to leaddomain.Status) error
}

type ClientReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (clientdomain.Client, error)
}

// Converter turns the proposal's lead into a client and project.
type Converter interface {
	ConvertTx(ctx context.Context, q db.Querier, leadID uuid.UUID, in clientservice.ConversionInput) (clientservice.ConversionResult, error)
	Announce(ctx context.Context, r clientservice.ConversionResult)
}

type DepositWriter interface {
	CreateDeposit(ctx context.Context, q db.Querier, inv billingdomain.Invoice) (bool, error)
}

type Copywriter interface {
	WriteProposal(ctx context.Context, brief copywriter.ProposalBrief) (copywriter.ProposalContent, error)
}

type DocumentRenderer interface {
	RenderProposal(ctx context.Context, doc pdf.ProposalDoc) ([]byte, error)
}

type Checkout interface {
	CreateDepositCheckout(ctx context.Context, req payments.DepositCheckout) (payments.CheckoutSession, error)
}

// Deps contains the collaborators of the proposal service.
type Deps struct {
	Store      Store
	Leads      LeadStore
	Clients    ClientReader
	Converter  Converter
	Deposits   DepositWriter
	Writer     Copywriter
	Renderer   DocumentRenderer
	Objects    storage.ObjectStore
	Checkout   Checkout
	Tx         db.Transactor
	Audit      audit.Recorder
	Bus        events.Bus
	Catalog    *catalog.Catalog
	AgencyName string
	PortalURL  string
	Log        *logger.Logger
}

// Service runs the proposal lifecycle: draft, sent, then signed or declined.
type Service struct {
	Deps
	now func() time.Time
}

func New(deps Deps) *Service {
	return &Service{Deps: deps, now: time.Now}
}

// recipient is the lead or client a proposal is addressed to.
type recipient struct {
	name       string
	company    string
	email      string
	notes      string
	leadStatus leaddomain.Status
}

func (s *Service) resolveRecipient(ctx context.Context, leadID, clientID *uuid.UUID) (recipient, error) {
	if (leadID == nil) == (clientID == nil) {
		return recipient{}, apperr.Validation("exactly one of leadId or clientId is required")
	}

	if leadID != nil {
		lead, err := s.Leads.GetByID(ctx, *leadID)
		if errors.Is(err, leadrepo.ErrNotFound) {
			return recipient{}, apperr.NotFound("lead not found")
		}
		if err != nil {
			return recipient{}, apperr.Internal("load lead", err)
		}
		return recipient{name: lead.Name, company: lead.Company, email: lead.Email, notes: lead.Notes, leadStatus: lead.Status}, nil
	}

	client, err := s.Clients.GetByID(ctx, *clientID)
	if errors.Is(err, clientrepo.ErrNotFound) {
		return recipient{}, apperr.NotFound("client not found")
	}
	if err != nil {
		return recipient{}, apperr.Internal("load client", err)
	}
	r := recipient{name: client.Company, company: client.Company, email: client.BillingEmail, notes: client.Notes}
	if contact, ok := client.PrimaryContact(); ok && contact.Name != "" {
		r.name = contact.Name
	}
	return r, nil
}

// Generate drafts a priced proposal for a lead or client and renders its
// document.
func (s *Service) Generate(ctx context.Context, req transport.GenerateProposalRequest) (transport.ProposalResponse, error) {
	pkg := projectdomain.Package(req.Package)
	tier, ok := s.Catalog.Tier(pkg)
	if !ok {
		return transport.ProposalResponse{}, apperr.Validation("unknown package " + req.Package)
	}

	rcpt, err := s.resolveRecipient(ctx, req.LeadID, req.ClientID)
	if err != nil {
		return transport.ProposalResponse{}, err
	}

	written, err := s.Writer.WriteProposal(ctx, copywriter.ProposalBrief{
		Company:            rcpt.company,
		Contact:            rcpt.name,
		Package:            tier.Name,
		Features:           tier.Features,
		Timeline:           tier.Timeline,
		CustomRequirements: req.CustomRequirements,
		DiscoveryNotes:     rcpt.notes,
	})
	if err != nil {
		return transport.ProposalResponse{}, apperr.External("write proposal content", err)
	}

	now := s.now().UTC()
	seq, err := s.Store.NextSequence(ctx, now.Year())
	if err != nil {
		return transport.ProposalResponse{}, apperr.Internal("allocate proposal number", err)
	}

	p := domain.Proposal{
		ID:                 uuid.New(),
		Number:             domain.Number(now.Year(), seq),
		LeadID:             req.LeadID,
		ClientID:           req.ClientID,
		Package:            pkg,
		Price:              domain.Price(tier.Price, req.UrgentDelivery),
		Currency:           money.DefaultCurrency,
		UrgentDelivery:     req.UrgentDelivery,
		CustomRequirements: strings.TrimSpace(req.CustomRequirements),
		Status:             domain.StatusDraft,
		Version:            1,
		Content:            domain.Content(written),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Store.Create(ctx, p); err != nil {
		return transport.ProposalResponse{}, apperr.Internal("create proposal", err)
	}

	s.attachDocument(ctx, &p, rcpt, tier)

	if err := s.Audit.Record(ctx, audit.Entry{
		Action: audit.ActionProposalGenerated,
		Payload: map[string]any{
			"proposalId":     p.ID.String(),
			"proposalNumber": p.Number,
			"package":        string(p.Package),
			"price":          p.Price,
			"urgentDelivery": p.UrgentDelivery,
		},
		ClientID: p.ClientID,
	}); err != nil {
		return transport.ProposalResponse{}, apperr.Internal("record proposal generation", err)
	}

	s.Log.WithContext(ctx).Info("proposal generated", "proposalId", p.ID, "number", p.Number, "price", p.Price)
	return toResponse(p), nil
}

// attachDocument renders and stores the PDF. The proposal stays usable
// without it, so failures are logged only.
func (s *Service) attachDocument(ctx context.Context, p *domain.Proposal, rcpt recipient, tier catalog.Tier) {
	log := s.Log.WithContext(ctx).With("proposalId", p.ID)

	features := p.Content.KeyFeatures
	if len(features) == 0 {
		features = tier.Features
	}
	doc := pdf.ProposalDoc{
		AgencyName:    s.AgencyName,
		Number:        p.Number,
		Date:          p.CreatedAt.Format("January 2, 2006"),
		RecipientName: rcpt.name,
		Company:       rcpt.company,
		PackageName:   tier.Name,
		Timeline:      tier.Timeline,
		Price:         money.Format(p.Price, p.Currency),
		Deposit:       money.Format(billingdomain.DepositAmount(p.Price), p.Currency),
		Urgent:        p.UrgentDelivery,
		Sections:      sections(p.Content),
		KeyFeatures:   features,
		Deliverables:  p.Content.Deliverables,
	}
	if s.PortalURL != "" {
		doc.PortalURL = fmt.Sprintf("%s/portal/proposals/%s", s.PortalURL, p.ID)
	}

	data, err := s.Renderer.RenderProposal(ctx, doc)
	if errors.Is(err, pdf.ErrDisabled) {
		log.Debug("proposal document skipped, pdf rendering disabled")
		return
	}
	if err != nil {
		log.Warn("failed to render proposal document", "error", err)
		return
	}

	key := p.DocumentKey()
	if err := s.Objects.Put(ctx, key, "application/pdf", data); err != nil {
		log.Warn("failed to store proposal document", "error", err)
		return
	}
	if err := s.Store.SetPDF(ctx, p.ID, key); err != nil {
		log.Warn("failed to link proposal document", "error", err)
		return
	}
	p.PDFKey = &key
}

func sections(c domain.Content) []pdf.Section {
	all := []pdf.Section{
		{Title: "Executive Summary", Body: c.ExecutiveSummary},
		{Title: "Project Understanding", Body: c.ProjectUnderstanding},
		{Title: "Proposed Solution", Body: c.ProposedSolution},
		{Title: "Timeline", Body: c.Timeline},
		{Title: "Investment", Body: c.Investment},
		{Title: "Why Choose Us", Body: c.WhyChooseUs},
		{Title: "Next Steps", Body: c.NextSteps},
	}
	out := all[:0]
	for _, sec := range all {
		if strings.TrimSpace(sec.Body) != "" {
			out = append(out, sec)
		}
	}
	return out
}

// Send opens a deposit checkout for a draft and marks it sent.
func (s *Service) Send(ctx context.Context, id uuid.UUID) (transport.ProposalResponse, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return transport.ProposalResponse{}, err
	}
	if p.Status != domain.StatusDraft {
		return transport.ProposalResponse{}, apperr.Validation("only draft proposals can be sent, proposal is " + string(p.Status))
	}

	rcpt, err := s.resolveRecipient(ctx, p.LeadID, p.ClientID)
	if err != nil {
		return transport.ProposalResponse{}, err
	}
	if rcpt.email == "" {
		return transport.ProposalResponse{}, apperr.Validation("recipient has no email address")
	}

	session, err := s.Checkout.CreateDepositCheckout(ctx, payments.DepositCheckout{
		ProposalID:     p.ID,
		ProposalNumber: p.Number,
		Description:    fmt.Sprintf("%s package deposit for %s", p.Package, rcpt.company),
		Amount:         billingdomain.DepositAmount(p.Price),
		Currency:       p.Currency,
		CustomerEmail:  rcpt.email,
	})
	if err != nil {
		return transport.ProposalResponse{}, apperr.External("create deposit checkout", err)
	}

	now := s.now().UTC()
	sent, err := s.Store.MarkSent(ctx, p.ID, session.ID, session.URL, now)
	if err != nil {
		return transport.ProposalResponse{}, apperr.Internal("mark proposal sent", err)
	}
	if !sent {
		return transport.ProposalResponse{}, apperr.Conflict("proposal changed, reload and retry")
	}
	p.Status, p.SentAt = domain.StatusSent, &now
	p.CheckoutSessionID, p.CheckoutURL = &session.ID, &session.URL

	if p.LeadID != nil && rcpt.leadStatus != leaddomain.StatusWon {
		if err := s.Leads.SetStatus(ctx, nil, *p.LeadID, leaddomain.StatusProposalSent); err != nil {
			return transport.ProposalResponse{}, apperr.Internal("update lead status", err)
		}
	}

	if err := s.Audit.Record(ctx, audit.Entry{
		Action:   audit.ActionProposalSent,
		Payload:  map[string]any{"proposalId": p.ID.String(), "proposalNumber": p.Number, "checkoutSessionId": session.ID},
		ClientID: p.ClientID,
	}); err != nil {
		return transport.ProposalResponse{}, apperr.Internal("record proposal sent", err)
	}

	s.Bus.Publish(ctx, events.ProposalSent{
		BaseEvent:      events.NewBaseEvent(),
		ProposalID:     p.ID,
		ProposalNumber: p.Number,
		RecipientName:  rcpt.name,
		RecipientEmail: rcpt.email,
		Price:          p.Price,
		Currency:       p.Currency,
		CheckoutURL:    session.URL,
	})

	return toResponse(p), nil
}

// Decline closes an open proposal.
func (s *Service) Decline(ctx context.Context, id uuid.UUID) (transport.ProposalResponse, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return transport.ProposalResponse{}, err
	}
	if !p.Status.IsOpen() {
		return transport.ProposalResponse{}, apperr.Validation("proposal is already " + string(p.Status))
	}

	now := s.now().UTC()
	declined, err := s.Store.Decline(ctx, id, now)
	if err != nil {
		return transport.ProposalResponse{}, apperr.Internal("decline proposal", err)
	}
	if !declined {
		return transport.ProposalResponse{}, apperr.Conflict("proposal changed, reload and retry")
	}
	p.Status, p.DeclinedAt = domain.StatusDeclined, &now

	if err := s.Audit.Record(ctx, audit.Entry{
		Action:   audit.ActionProposalDeclined,
		Payload:  map[string]any{"proposalId": p.ID.String(), "proposalNumber": p.Number},
		ClientID: p.ClientID,
	}); err != nil {
		return transport.ProposalResponse{}, apperr.Internal("record proposal declined", err)
	}
	return toResponse(p), nil
}

// AcceptResult describes a signed proposal. Accepted is false when the
// proposal had been signed before.
type AcceptResult struct {
	ProposalID     uuid.UUID
	ProposalNumber string
	ClientID       uuid.UUID
	ProjectID      *uuid.UUID
	Accepted       bool
}

// Accept applies a signature: the proposal becomes signed, a lead is
// converted and marked won, and a paid deposit invoice is created.
// Re-applying it changes nothing.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, stripeInvoiceID string) (AcceptResult, error) {
	var result AcceptResult
	var conversion clientservice.ConversionResult

	err := s.Tx.WithinTx(ctx, func(q db.Querier) error {
		p, err := s.Store.GetByIDTx(ctx, q, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(msgProposalNotFound)
		}
		if err != nil {
			return apperr.Internal("load proposal", err)
		}
		result = AcceptResult{ProposalID: p.ID, ProposalNumber: p.Number}

		now := s.now().UTC()
		switch {
		case p.Status == domain.StatusSigned:
		case p.Status.IsOpen():
			signed, err := s.Store.Sign(ctx, q, p.ID, now)
			if err != nil {
				return apperr.Internal("sign proposal", err)
			}
			if !signed {
				return apperr.Conflict("proposal changed while signing")
			}
			result.Accepted = true
		default:
			return apperr.Validation("proposal is " + string(p.Status))
		}

		if p.ClientID != nil {
			result.ClientID = *p.ClientID
		}
		if p.LeadID != nil {
			conversion, err = s.Converter.ConvertTx(ctx, q, *p.LeadID, clientservice.ConversionInput{
				Package:       p.Package,
				InternalNotes: "Signed proposal " + p.Number + ".",
			})
			if err != nil {
				return err
			}
			result.ClientID, result.ProjectID = conversion.ClientID, &conversion.ProjectID
		}

		if !result.Accepted {
			return nil
		}

		if p.LeadID != nil {
			if err := s.Leads.SetStatus(ctx, q, *p.LeadID, leaddomain.StatusWon); err != nil {
				return apperr.Internal("mark lead won", err)
			}
		}

		invoice := billingdomain.Invoice{
			ID:         uuid.New(),
			ClientID:   result.ClientID,
			ProjectID:  result.ProjectID,
			ProposalID: &p.ID,
			Type:       billingdomain.InvoiceDeposit,
			Status:     billingdomain.InvoicePaid,
			Amount:     billingdomain.DepositAmount(p.Price),
			Currency:   p.Currency,
			PaidAt:     &now,
		}
		if stripeInvoiceID != "" {
			invoice.StripeInvoiceID = &stripeInvoiceID
		}
		if _, err := s.Deposits.CreateDeposit(ctx, q, invoice); err != nil {
			return apperr.Internal("create deposit invoice", err)
		}

		return s.Audit.RecordTx(ctx, q, audit.Entry{
			Action: audit.ActionProposalAccepted,
			Payload: map[string]any{
				"proposalId":     p.ID.String(),
				"proposalNumber": p.Number,
				"deposit":        invoice.Amount,
			},
			ClientID:  &result.ClientID,
			ProjectID: result.ProjectID,
		})
	})
	if err != nil {
		return AcceptResult{}, err
	}

	s.Converter.Announce(ctx, conversion)
	if result.Accepted {
		accepted := events.ProposalAccepted{
			BaseEvent:      events.NewBaseEvent(),
			ProposalID:     result.ProposalID,
			ProposalNumber: result.ProposalNumber,
			ClientID:       result.ClientID,
		}
		if result.ProjectID != nil {
			accepted.ProjectID = *result.ProjectID
		}
		s.Bus.Publish(ctx, accepted)
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.ProposalResponse, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return transport.ProposalResponse{}, err
	}
	return toResponse(p), nil
}

// DownloadURL presigns the stored proposal document.
func (s *Service) DownloadURL(ctx context.Context, id uuid.UUID) (transport.DownloadURLResponse, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return transport.DownloadURLResponse{}, err
	}
	if p.PDFKey == nil {
		return transport.DownloadURLResponse{}, apperr.NotFound("proposal has no document")
	}
	url, err := s.Objects.PresignedGetURL(ctx, *p.PDFKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return transport.DownloadURLResponse{}, apperr.NotFound("proposal document not found")
	}
	if err != nil {
		return transport.DownloadURLResponse{}, apperr.External("presign proposal document", err)
	}
	return transport.DownloadURLResponse{URL: url.URL, ExpiresAt: url.ExpiresAt}, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (domain.Proposal, error) {
	p, err := s.Store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Proposal{}, apperr.NotFound(msgProposalNotFound)
	}
	if err != nil {
		return domain.Proposal{}, apperr.Internal("load proposal", err)
	}
	return p, nil
}

func toResponse(p domain.Proposal) transport.ProposalResponse {
	return transport.ProposalResponse{
		ID:                 p.ID,
		ProposalNumber:     p.Number,
		LeadID:             p.LeadID,
		ClientID:           p.ClientID,
		Package:            string(p.Package),
		Price:              p.Price,
		Deposit:            billingdomain.DepositAmount(p.Price),
		Currency:           p.Currency,
		UrgentDelivery:     p.UrgentDelivery,
		CustomRequirements: p.CustomRequirements,
		Status:             string(p.Status),
		Version:            p.Version,
		Content:            transport.ProposalContentResponse(p.Content),
		HasDocument:        p.PDFKey != nil,
		CheckoutURL:        p.CheckoutURL,
		SentAt:             p.SentAt,
		SignedAt:           p.SignedAt,
		DeclinedAt:         p.DeclinedAt,
		CreatedAt:          p.CreatedAt,
	}
}
