package service

import (
	"context"
	"fmt"

	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"
)

// Provisioner assigns the repository and staging URLs of a started project.
// No hosting or VCS calls are made; the URLs follow a fixed naming scheme.
type Provisioner struct {
	store  Store
	audit  audit.Recorder
	org    string
	domain string
	log    *logger.Logger
}

func NewProvisioner(store Store, recorder audit.Recorder, org, stagingDomain string, log *logger.Logger) *Provisioner {
	return &Provisioner{store: store, audit: recorder, org: org, domain: stagingDomain, log: log}
}

// URLs returns the repository and staging URL for a client.
func (p *Provisioner) URLs(clientID string) (repoURL, stagingURL string) {
	repoURL = fmt.Sprintf("https://github.com/%s/client-%s", p.org, clientID)
	stagingURL = fmt.Sprintf("https://client-%s-staging.%s", clientID, p.domain)
	return repoURL, stagingURL
}

// Provision stores the URLs once, together with their audit record.
// Projects that already have a repository are left alone.
func (p *Provisioner) Provision(ctx context.Context, project domain.Project) error {
	repoURL, stagingURL := p.URLs(project.ClientID.String())

	assigned, err := p.store.SetInfrastructure(ctx, project.ID, repoURL, stagingURL, func(q db.Querier) error {
		return p.audit.RecordTx(ctx, q, audit.Entry{
			Action:    audit.ActionInfrastructureProvisioned,
			Payload:   map[string]any{"projectId": project.ID.String(), "repoUrl": repoURL, "stagingUrl": stagingURL},
			ClientID:  &project.ClientID,
			ProjectID: &project.ID,
		})
	})
	if err != nil {
		return apperr.Internal("provision project", err)
	}
	if assigned {
		p.log.WithContext(ctx).Info("project infrastructure provisioned", "projectId", project.ID, "repoUrl", repoURL)
	}
	return nil
}
