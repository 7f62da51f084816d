package transport

import (
	"time"

	"github.com/google/uuid"
)

type ConvertLeadRequest struct {
	Package       string   `json:"package" validate:"omitempty,package_tier"`
	KeyPoints     []string `json:"keyPoints" validate:"omitempty,max=50,dive,max=500"`
	ClientNotes   string   `json:"clientNotes" validate:"max=5000"`
	InternalNotes string   `json:"internalNotes" validate:"max=5000"`
}

type ConvertLeadResponse struct {
	LeadID    uuid.UUID `json:"leadId"`
	ClientID  uuid.UUID `json:"clientId"`
	ProjectID uuid.UUID `json:"projectId"`
	Created   bool      `json:"created"`
}

type ContactResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

type ClientResponse struct {
	ID           uuid.UUID         `json:"id"`
	Company      string            `json:"company"`
	Contacts     []ContactResponse `json:"contacts"`
	BillingEmail string            `json:"billingEmail"`
	Plan         string            `json:"plan"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type ActivityResponse struct {
	ID        uuid.UUID  `json:"id"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	ProjectID *uuid.UUID `json:"projectId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
