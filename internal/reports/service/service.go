package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"agency_portal_backend/internal/adapters/storage"
	"agency_portal_backend/internal/audit"
	billingdomain "agency_portal_backend/internal/billing/domain"
	billingrepo "agency_portal_backend/internal/billing/repository"
	clientdomain "agency_portal_backend/internal/clients/domain"
	clientrepo "agency_portal_backend/internal/clients/repository"
	"agency_portal_backend/internal/copywriter"
	"agency_portal_backend/internal/email"
	"agency_portal_backend/internal/pdf"
	projectdomain "agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/internal/reports/domain"
	"agency_portal_backend/internal/reports/transport"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/money"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many client reports a batch builds at once.
const DefaultConcurrency = 4

type Store interface {
	Upsert(ctx context.Context, r domain.Report) (uuid.UUID, error)
	SetPDF(ctx context.Context, id uuid.UUID, key string) error
}

type ClientReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (clientdomain.Client, error)
	ListOnPlan(ctx context.Context) ([]clientdomain.Client, error)
}

type ProjectReader interface {
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]projectdomain.Project, error)
}

type BillingReader interface {
	SumPaidBetween(ctx context.Context, clientID uuid.UUID, from, to time.Time) (int64, int, error)
	ActiveSubscription(ctx context.Context, clientID uuid.UUID) (billingdomain.Subscription, error)
}

type ActivityCounter interface {
	CountActivitiesBetween(ctx context.Context, clientID uuid.UUID, from, to time.Time) (map[string]int, error)
}

type Analyst interface {
	ReportInsights(ctx context.Context, facts copywriter.ReportFacts) (copywriter.ReportInsights, error)
}

type DocumentRenderer interface {
	RenderReport(ctx context.Context, doc pdf.ReportDoc) ([]byte, error)
}

type Deps struct {
	Store       Store
	Clients     ClientReader
	Projects    ProjectReader
	Billing     BillingReader
	Activities  ActivityCounter
	Analyst     Analyst
	Renderer    DocumentRenderer
	Objects     storage.ObjectStore
	Mailer      email.Sender
	Audit       audit.Recorder
	AgencyName  string
	Concurrency int
	Log         *logger.Logger
}

type Service struct {
	Deps
	now func() time.Time
}

func New(deps Deps) *Service {
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultConcurrency
	}
	return &Service{Deps: deps, now: time.Now}
}

// ResolvePeriod returns the requested month. A zero month or year is taken
// from the previous month.
func (s *Service) ResolvePeriod(year, month int) (domain.Period, error) {
	prev := domain.PreviousMonth(s.now().UTC())
	if year == 0 {
		year = prev.Year
	}
	if month == 0 {
		month = prev.Month
	}
	p, err := domain.NewPeriod(year, month)
	if err != nil {
		return domain.Period{}, apperr.Validation(err.Error())
	}
	return p, nil
}

// Generate builds, stores, renders and mails one client's report.
func (s *Service) Generate(ctx context.Context, clientID uuid.UUID, period domain.Period) (transport.ReportResponse, error) {
	client, err := s.Clients.GetByID(ctx, clientID)
	if errors.Is(err, clientrepo.ErrNotFound) {
		return transport.ReportResponse{}, apperr.NotFound("client not found")
	}
	if err != nil {
		return transport.ReportResponse{}, apperr.Internal("load client", err)
	}
	return s.generate(ctx, client, period)
}

func (s *Service) generate(ctx context.Context, client clientdomain.Client, period domain.Period) (transport.ReportResponse, error) {
	data, err := s.collect(ctx, client.ID, period)
	if err != nil {
		return transport.ReportResponse{}, err
	}

	written, err := s.Analyst.ReportInsights(ctx, facts(client, period, data))
	if err != nil {
		return transport.ReportResponse{}, apperr.External("report insights failed", err)
	}
	insights := toInsights(written)

	reportID, err := s.Store.Upsert(ctx, domain.Report{
		ID:       uuid.New(),
		ClientID: client.ID,
		Period:   period,
		Data:     data,
		Insights: insights,
	})
	if err != nil {
		return transport.ReportResponse{}, apperr.Internal("store report", err)
	}

	resp := transport.ReportResponse{
		ReportID: reportID,
		ClientID: client.ID,
		Month:    period.Month,
		Year:     period.Year,
		Summary:  insights.Summary,
	}

	document, key := s.attachDocument(ctx, reportID, client, period, data, insights)
	if key != "" {
		if url, err := s.Objects.PresignedGetURL(ctx, key); err == nil {
			resp.PDFURL = url.URL
		} else {
			s.Log.WithContext(ctx).Warn("failed to presign report", "reportId", reportID, "error", err)
		}
	}

	s.mail(ctx, client, period, insights, resp.PDFURL, document)

	if err := s.Audit.Record(ctx, audit.Entry{
		Action:   audit.ActionMonthlyReportGenerated,
		Payload:  map[string]any{"reportId": reportID.String(), "month": period.Month, "year": period.Year},
		ClientID: &client.ID,
	}); err != nil {
		s.Log.WithContext(ctx).Error("failed to audit report", "reportId", reportID, "error", err)
	}

	s.Log.WithContext(ctx).Info("monthly report generated", "clientId", client.ID, "reportId", reportID, "period", period.Label())
	return resp, nil
}

// collect gathers the measured figures of the month. Closed projects are
// left out.
func (s *Service) collect(ctx context.Context, clientID uuid.UUID, period domain.Period) (domain.Data, error) {
	from, to := period.Bounds()
	data := domain.Data{Period: period, Projects: []domain.ProjectSnapshot{}}

	projects, err := s.Projects.ListByClient(ctx, clientID)
	if err != nil {
		return domain.Data{}, apperr.Internal("list projects", err)
	}
	for _, p := range projects {
		if p.Status == projectdomain.StageClosed {
			continue
		}
		data.Projects = append(data.Projects, domain.ProjectSnapshot{
			ID:         p.ID,
			Package:    string(p.Package),
			Status:     string(p.Status),
			Progress:   projectdomain.Progress(p.Status),
			StagingURL: p.StagingURL,
		})
	}

	total, count, err := s.Billing.SumPaidBetween(ctx, clientID, from, to)
	if err != nil {
		return domain.Data{}, apperr.Internal("sum payments", err)
	}
	data.Payments = domain.PaymentSummary{PaidInvoices: count, PaidTotal: total, Currency: money.DefaultCurrency}

	data.Activity, err = s.Activities.CountActivitiesBetween(ctx, clientID, from, to)
	if err != nil {
		return domain.Data{}, apperr.Internal("count activities", err)
	}

	sub, err := s.Billing.ActiveSubscription(ctx, clientID)
	switch {
	case err == nil:
		data.Subscription = &domain.SubscriptionSnapshot{
			Plan:             string(sub.Plan),
			Status:           string(sub.Status),
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
		}
	case !errors.Is(err, billingrepo.ErrNotFound):
		return domain.Data{}, apperr.Internal("load subscription", err)
	}
	return data, nil
}

func (s *Service) attachDocument(ctx context.Context, reportID uuid.UUID, client clientdomain.Client, period domain.Period, data domain.Data, insights domain.Insights) ([]byte, string) {
	log := s.Log.WithContext(ctx).With("reportId", reportID)

	document, err := s.Renderer.RenderReport(ctx, reportDoc(s.AgencyName, client, period, data, insights))
	if errors.Is(err, pdf.ErrDisabled) {
		log.Debug("pdf rendering disabled, report stored without document")
		return nil, ""
	}
	if err != nil {
		log.Warn("failed to render report", "error", err)
		return nil, ""
	}

	key := domain.DocumentKey(client.ID, period)
	if err := s.Objects.Put(ctx, key, "application/pdf", document); err != nil {
		log.Warn("failed to upload report", "error", err)
		return nil, ""
	}
	if err := s.Store.SetPDF(ctx, reportID, key); err != nil {
		log.Warn("failed to link report document", "error", err)
	}
	return document, key
}

func (s *Service) mail(ctx context.Context, client clientdomain.Client, period domain.Period, insights domain.Insights, url string, document []byte) {
	if client.BillingEmail == "" {
		s.Log.WithContext(ctx).Warn("client has no billing email, report not mailed", "clientId", client.ID)
		return
	}
	var attachments []email.Attachment
	if len(document) > 0 {
		attachments = append(attachments, email.Attachment{
			Content:  document,
			FileName: fmt.Sprintf("report-%04d-%02d.pdf", period.Year, period.Month),
			MIMEType: "application/pdf",
		})
	}
	err := s.Mailer.SendMonthlyReport(ctx, client.BillingEmail, email.ReportMail{
		Company:    client.Company,
		AgencyName: s.AgencyName,
		Period:     period.Label(),
		Summary:    insights.Summary,
		ReportURL:  url,
	}, attachments...)
	if err != nil {
		s.Log.WithContext(ctx).Error("failed to mail report", "clientId", client.ID, "error", err)
	}
}

// GenerateAll builds the month's report for every client on a care plan.
// A failing client is logged and counted; the others still run.
func (s *Service) GenerateAll(ctx context.Context, period domain.Period) (transport.BatchResponse, error) {
	clients, err := s.Clients.ListOnPlan(ctx)
	if err != nil {
		return transport.BatchResponse{}, apperr.Internal("list clients", err)
	}

	var generated, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for _, client := range clients {
		g.Go(func() error {
			if _, err := s.generate(gctx, client, period); err != nil {
				failed.Add(1)
				s.Log.WithContext(gctx).Error("failed to generate monthly report", "clientId", client.ID, "period", period.Label(), "error", err)
				return nil
			}
			generated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	s.Log.WithContext(ctx).Info("monthly reports finished", "period", period.Label(), "clients", len(clients), "generated", generated.Load(), "failed", failed.Load())
	return transport.BatchResponse{
		Month:     period.Month,
		Year:      period.Year,
		Clients:   len(clients),
		Generated: int(generated.Load()),
		Failed:    int(failed.Load()),
	}, nil
}

func facts(client clientdomain.Client, period domain.Period, data domain.Data) copywriter.ReportFacts {
	stages := make([]string, 0, len(data.Projects))
	for _, p := range data.Projects {
		stages = append(stages, p.Status)
	}
	sort.Strings(stages)

	subscription := "none"
	if data.Subscription != nil {
		subscription = data.Subscription.Status
	}
	return copywriter.ReportFacts{
		Company:           client.Company,
		Plan:              string(client.Plan),
		Period:            period.Label(),
		ProjectCount:      len(data.Projects),
		ProjectStages:     stages,
		PaidInvoices:      data.Payments.PaidInvoices,
		PaidTotal:         money.Format(data.Payments.PaidTotal, data.Payments.Currency),
		ActivityByType:    data.Activity,
		SubscriptionState: subscription,
	}
}

func toInsights(in copywriter.ReportInsights) domain.Insights {
	out := domain.Insights{
		Summary:             in.Summary,
		KeyAchievements:     in.KeyAchievements,
		AreasForImprovement: in.AreasForImprovement,
		PerformanceScore:    clampScore(in.PerformanceScore),
		SecurityScore:       clampScore(in.SecurityScore),
		NextMonthFocus:      in.NextMonthFocus,
	}
	for _, r := range in.Recommendations {
		out.Recommendations = append(out.Recommendations, domain.Recommendation(r))
	}
	return out
}

func clampScore(v int) int {
	return max(0, min(v, 100))
}

func reportDoc(agency string, client clientdomain.Client, period domain.Period, data domain.Data, insights domain.Insights) pdf.ReportDoc {
	doc := pdf.ReportDoc{
		AgencyName: agency,
		ClientName: client.Company,
		Period:     period.Label(),
		Summary:    insights.Summary,
		Metrics: []pdf.Metric{
			{Label: "Active projects", Value: fmt.Sprint(len(data.Projects))},
			{Label: "Payments received", Value: money.Format(data.Payments.PaidTotal, data.Payments.Currency)},
			{Label: "Performance", Value: fmt.Sprintf("%d/100", insights.PerformanceScore)},
			{Label: "Security", Value: fmt.Sprintf("%d/100", insights.SecurityScore)},
		},
		Highlights: insights.KeyAchievements,
	}
	for _, p := range data.Projects {
		doc.Projects = append(doc.Projects, pdf.ProjectLine{Package: p.Package, Stage: p.Status, Progress: p.Progress})
	}
	for _, r := range insights.Recommendations {
		line := r.Title
		if r.Description != "" {
			line += ": " + r.Description
		}
		doc.Recommendations = append(doc.Recommendations, line)
	}
	return doc
}
