// Package domain holds client accounts and the package heuristic used when
// a lead is converted.
package domain

import (
	"strings"
	"time"

	projectdomain "agency_portal_backend/internal/projects/domain"

	"github.com/google/uuid"
)

// Plan is the care plan a client subscribes to.
type Plan string

const (
	PlanNone      Plan = "none"
	PlanCareBasic Plan = "care_basic"
	PlanCarePlus  Plan = "care_plus"
	PlanCarePro   Plan = "care_pro"
)

func (p Plan) IsValid() bool {
	switch p {
	case PlanNone, PlanCareBasic, PlanCarePlus, PlanCarePro:
		return true
	}
	return false
}

const PrimaryContactRole = "Primary Contact"

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type Client struct {
	ID               uuid.UUID
	Company          string
	Contacts         []Contact
	BillingEmail     string
	Plan             Plan
	StripeCustomerID *string
	SourceLeadID     *uuid.UUID
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PrimaryContact returns the first contact, if any.
func (c Client) PrimaryContact() (Contact, bool) {
	if len(c.Contacts) == 0 {
		return Contact{}, false
	}
	return c.Contacts[0], true
}

var (
	premiumKeywords  = []string{"ecommerce", "e-commerce", "complex", "integration"}
	standardKeywords = []string{"cms", "blog", "multi-page"}
)

// DeterminePackage picks a package from meeting key points. Premium keywords
// win over standard ones; anything else is starter.
func DeterminePackage(keyPoints []string) projectdomain.Package {
	text := strings.ToLower(strings.Join(keyPoints, " "))
	if containsAny(text, premiumKeywords) {
		return projectdomain.PackagePremium
	}
	if containsAny(text, standardKeywords) {
		return projectdomain.PackageStandard
	}
	return projectdomain.PackageStarter
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
