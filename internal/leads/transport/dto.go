package transport

import (
	"time"

	"github.com/google/uuid"
)

// UTMRequest is the optional marketing attribution triple.
type UTMRequest struct {
	Source   string `json:"source" validate:"max=200"`
	Medium   string `json:"medium" validate:"max=200"`
	Campaign string `json:"campaign" validate:"max=200"`
}

// CreateLeadRequest is the public lead capture form.
type CreateLeadRequest struct {
	Name        string      `json:"name" validate:"required,min=2,max=200"`
	Company     string      `json:"company" validate:"required,min=2,max=200"`
	Email       string      `json:"email" validate:"required,email,max=320"`
	Phone       string      `json:"phone" validate:"max=40"`
	Source      string      `json:"source" validate:"required,max=100"`
	Notes       string      `json:"notes" validate:"max=5000"`
	UTM         *UTMRequest `json:"utm"`
	BudgetRange string      `json:"budgetRange" validate:"max=50"`
	ProjectType string      `json:"projectType" validate:"max=100"`
	Timeline    string      `json:"timeline" validate:"max=50"`
}

// CreateLeadResponse mirrors what the capture form expects.
type CreateLeadResponse struct {
	Success bool      `json:"success"`
	LeadID  uuid.UUID `json:"leadId"`
	Score   int       `json:"score"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// UpdateLeadStatusRequest is a staff status change.
type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,lead_status"`
}

// LeadResponse is the staff view of a lead.
type LeadResponse struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Company         string     `json:"company"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	Source          string     `json:"source"`
	UTM             UTMRequest `json:"utm"`
	BudgetRange     string     `json:"budgetRange,omitempty"`
	ProjectType     string     `json:"projectType,omitempty"`
	Timeline        string     `json:"timeline,omitempty"`
	Notes           string     `json:"notes"`
	Score           int        `json:"score"`
	Status          string     `json:"status"`
	BookedMeetingID *uuid.UUID `json:"bookedMeetingId,omitempty"`
	ClientID        *uuid.UUID `json:"clientId,omitempty"`
	ProjectID       *uuid.UUID `json:"projectId,omitempty"`
	ConvertedAt     *time.Time `json:"convertedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
