package service

import (
	"context"
	"errors"

	"agency_portal_backend/internal/audit"
	"agency_portal_backend/internal/clients/domain"
	"agency_portal_backend/internal/clients/repository"
	"agency_portal_backend/internal/clients/transport"
	"agency_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

type ClientReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error)
}

type ActivityLister interface {
	ListActivities(ctx context.Context, clientID uuid.UUID, limit int) ([]audit.Activity, error)
}

// Service serves the client portal.
type Service struct {
	clients    ClientReader
	activities ActivityLister
}

func New(clients ClientReader, activities ActivityLister) *Service {
	return &Service{clients: clients, activities: activities}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.ClientResponse, error) {
	c, err := s.clients.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ClientResponse{}, apperr.NotFound("client not found")
	}
	if err != nil {
		return transport.ClientResponse{}, apperr.Internal("load client", err)
	}

	contacts := make([]transport.ContactResponse, 0, len(c.Contacts))
	for _, ct := range c.Contacts {
		contacts = append(contacts, transport.ContactResponse{Name: ct.Name, Email: ct.Email, Phone: ct.Phone, Role: ct.Role})
	}
	return transport.ClientResponse{
		ID:           c.ID,
		Company:      c.Company,
		Contacts:     contacts,
		BillingEmail: c.BillingEmail,
		Plan:         string(c.Plan),
		CreatedAt:    c.CreatedAt,
	}, nil
}

// Activities returns the client's newest feed items.
func (s *Service) Activities(ctx context.Context, clientID uuid.UUID, limit int) ([]transport.ActivityResponse, error) {
	if _, err := s.Get(ctx, clientID); err != nil {
		return nil, err
	}
	items, err := s.activities.ListActivities(ctx, clientID, limit)
	if err != nil {
		return nil, apperr.Internal("list activities", err)
	}
	out := make([]transport.ActivityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, transport.ActivityResponse{
			ID:        a.ID,
			Message:   a.Message,
			Type:      a.Type,
			ProjectID: a.ProjectID,
			CreatedAt: a.CreatedAt,
		})
	}
	return out, nil
}
