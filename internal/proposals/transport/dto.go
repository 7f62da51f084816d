package transport

import (
	"time"

	"github.com/google/uuid"
)

// GenerateProposalRequest names exactly one recipient.
type GenerateProposalRequest struct {
	LeadID             *uuid.UUID `json:"leadId"`
	ClientID           *uuid.UUID `json:"clientId"`
	Package            string     `json:"package" validate:"required,package_tier"`
	CustomRequirements string     `json:"customRequirements" validate:"max=5000"`
	UrgentDelivery     bool       `json:"urgentDelivery"`
}

type ProposalContentResponse struct {
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

type ProposalResponse struct {
	ID                 uuid.UUID               `json:"id"`
	ProposalNumber     string                  `json:"proposalNumber"`
	LeadID             *uuid.UUID              `json:"leadId,omitempty"`
	ClientID           *uuid.UUID              `json:"clientId,omitempty"`
	Package            string                  `json:"package"`
	Price              int64                   `json:"price"`
	Deposit            int64                   `json:"deposit"`
	Currency           string                  `json:"currency"`
	UrgentDelivery     bool                    `json:"urgentDelivery"`
	CustomRequirements string                  `json:"customRequirements,omitempty"`
	Status             string                  `json:"status"`
	Version            int                     `json:"version"`
	Content            ProposalContentResponse `json:"content"`
	HasDocument        bool                    `json:"hasDocument"`
	CheckoutURL        *string                 `json:"checkoutUrl,omitempty"`
	SentAt             *time.Time              `json:"sentAt,omitempty"`
	SignedAt           *time.Time              `json:"signedAt,omitempty"`
	DeclinedAt         *time.Time              `json:"declinedAt,omitempty"`
	CreatedAt          time.Time               `json:"createdAt"`
}

type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
