// Package events defines the domain events exchanged between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"agency_portal_backend/platform/events"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Lead Events
// =============================================================================

// LeadCreated is published after a lead submission is stored.
type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Score  int       `json:"score"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadQualifiedHighValue is published when a lead is auto-qualified by score.
type LeadQualifiedHighValue struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	Name    string    `json:"name"`
	Company string    `json:"company"`
	Score   int       `json:"score"`
}

func (e LeadQualifiedHighValue) EventName() string { return "leads.lead.qualified_high_value" }

// LeadConverted is published once per lead, when its client and project exist.
type LeadConverted struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	ClientID  uuid.UUID `json:"clientId"`
	ProjectID uuid.UUID `json:"projectId"`
}

func (e LeadConverted) EventName() string { return "clients.lead.converted" }

// =============================================================================
// Proposal Events
// =============================================================================

// ProposalSent is published when a draft proposal goes out to its recipient.
type ProposalSent struct {
	BaseEvent
	ProposalID     uuid.UUID `json:"proposalId"`
	ProposalNumber string    `json:"proposalNumber"`
	RecipientName  string    `json:"recipientName"`
	RecipientEmail string    `json:"recipientEmail"`
	Price          int64     `json:"price"`
	Currency       string    `json:"currency"`
	CheckoutURL    string    `json:"checkoutUrl"`
}

func (e ProposalSent) EventName() string { return "proposals.proposal.sent" }

// ProposalAccepted is published after a signed proposal has been fully applied.
type ProposalAccepted struct {
	BaseEvent
	ProposalID     uuid.UUID `json:"proposalId"`
	ProposalNumber string    `json:"proposalNumber"`
	ClientID       uuid.UUID `json:"clientId"`
	ProjectID      uuid.UUID `json:"projectId"`
}

func (e ProposalAccepted) EventName() string { return "proposals.proposal.accepted" }

// =============================================================================
// Project Events
// =============================================================================

// ProjectStageAdvanced is published after a project moves to its next stage.
type ProjectStageAdvanced struct {
	BaseEvent
	ProjectID uuid.UUID `json:"projectId"`
	ClientID  uuid.UUID `json:"clientId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
}

func (e ProjectStageAdvanced) EventName() string { return "projects.stage.advanced" }
