// Package domain holds invoices, care subscriptions and the payment rules
// shared by proposals and the payment event dispatcher.
package domain

import (
	"math"
	"time"

	clientdomain "agency_portal_backend/internal/clients/domain"

	"github.com/google/uuid"
)

type InvoiceType string

const (
	InvoiceDeposit   InvoiceType = "deposit"
	InvoiceMilestone InvoiceType = "milestone"
	InvoiceCare      InvoiceType = "care"
)

func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceDeposit, InvoiceMilestone, InvoiceCare:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue:
		return true
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionOnHold   SubscriptionStatus = "on_hold"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// MirrorStatus maps the payment platform's subscription status. Only
// "active" stays active; everything else is on hold.
func MirrorStatus(external string) SubscriptionStatus {
	if external == "active" {
		return SubscriptionActive
	}
	return SubscriptionOnHold
}

// DepositRate is the share of the proposal price charged on signature.
const DepositRate = 0.4

// DepositAmount is 40% of price rounded to the nearest currency unit.
func DepositAmount(price int64) int64 {
	return int64(math.Round(float64(price) * DepositRate))
}

// PlanForPrice maps a configured price id to a care plan. Unknown ids fall
// back to the lowest tier.
func PlanForPrice(priceToPlan map[string]string, priceID string) clientdomain.Plan {
	if plan := clientdomain.Plan(priceToPlan[priceID]); priceID != "" && plan.IsValid() && plan != clientdomain.PlanNone {
		return plan
	}
	return clientdomain.PlanCareBasic
}

type Invoice struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	ProjectID       *uuid.UUID
	ProposalID      *uuid.UUID
	Type            InvoiceType
	Status          InvoiceStatus
	Amount          int64
	Currency        string
	StripeInvoiceID *string
	DueDate         *time.Time
	PaidAt          *time.Time
	CreatedAt       time.Time
}

type Subscription struct {
	ID                   uuid.UUID
	ClientID             uuid.UUID
	Plan                 clientdomain.Plan
	StripeSubscriptionID string
	Status               SubscriptionStatus
	CurrentPeriodEnd     *time.Time
	LastInvoiceStatus    *string
	CreatedAt            time.Time
}
