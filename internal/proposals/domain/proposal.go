// Package domain holds proposal states, numbering and pricing rules.
package domain

import (
	"fmt"
	"math"
	"time"

	projectdomain "agency_portal_backend/internal/projects/domain"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusSigned   Status = "signed"
	StatusDeclined Status = "declined"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusSigned, StatusDeclined:
		return true
	}
	return false
}

// IsOpen reports whether the proposal can still be signed or declined.
func (s Status) IsOpen() bool {
	return s == StatusDraft || s == StatusSent
}

// UrgentMultiplier is applied to the tier price for rush delivery.
const UrgentMultiplier = 1.3

// Number formats a proposal number, e.g. PROP-2026-0007.
func Number(year, sequence int) string {
	return fmt.Sprintf("PROP-%d-%04d", year, sequence)
}

// Price is the tier base price, raised for urgent delivery and rounded to
// whole currency units.
func Price(base int64, urgent bool) int64 {
	if !urgent {
		return base
	}
	return int64(math.Round(float64(base) * UrgentMultiplier))
}

// Content holds the written sections of a proposal.
type Content struct {
	ExecutiveSummary     string   `json:"executiveSummary"`
	ProjectUnderstanding string   `json:"projectUnderstanding"`
	ProposedSolution     string   `json:"proposedSolution"`
	Timeline             string   `json:"timeline"`
	Investment           string   `json:"investment"`
	WhyChooseUs          string   `json:"whyChooseUs"`
	NextSteps            string   `json:"nextSteps"`
	KeyFeatures          []string `json:"keyFeatures"`
	Deliverables         []string `json:"deliverables"`
}

// Proposal is addressed to exactly one of a lead or a client.
type Proposal struct {
	ID                 uuid.UUID
	Number             string
	LeadID             *uuid.UUID
	ClientID           *uuid.UUID
	Package            projectdomain.Package
	Price              int64
	Currency           string
	UrgentDelivery     bool
	CustomRequirements string
	Status             Status
	Version            int
	Content            Content
	PDFKey             *string
	CheckoutSessionID  *string
	CheckoutURL        *string
	SentAt             *time.Time
	SignedAt           *time.Time
	DeclinedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DocumentKey is where the rendered proposal is stored.
func (p Proposal) DocumentKey() string {
	return fmt.Sprintf("proposals/%s/proposal-%s.pdf", p.ID, p.Number)
}
