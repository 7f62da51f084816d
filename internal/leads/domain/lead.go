// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lead pipeline status.
type Status string

const (
	StatusNew             Status = "new"
	StatusQualified       Status = "qualified"
	StatusDiscoveryBooked Status = "discovery_booked"
	StatusProposalSent    Status = "proposal_sent"
	StatusWon             Status = "won"
	StatusLost            Status = "lost"
)

// AutoQualifyScore is the score at which a new lead is qualified automatically.
const AutoQualifyScore = 80

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusQualified, StatusDiscoveryBooked, StatusProposalSent, StatusWon, StatusLost:
		return true
	}
	return false
}

// IsValidStatus is the validator hook for the lead_status tag.
func IsValidStatus(s string) bool { return Status(s).IsValid() }

// allowedTransitions lists every status change a caller may request.
// won is final; lost can be reopened as qualified.
var allowedTransitions = map[Status][]Status{
	StatusNew:             {StatusQualified, StatusDiscoveryBooked, StatusLost},
	StatusQualified:       {StatusDiscoveryBooked, StatusProposalSent, StatusLost},
	StatusDiscoveryBooked: {StatusQualified, StatusProposalSent, StatusLost},
	StatusProposalSent:    {StatusWon, StatusLost},
	StatusLost:            {StatusQualified},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UTM is the optional marketing attribution triple.
type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

// Lead is a prospective client.
type Lead struct {
	ID              uuid.UUID
	Name            string
	Company         string
	Email           string
	Phone           string
	Source          string
	UTM             UTM
	BudgetRange     string
	ProjectType     string
	Timeline        string
	Notes           string
	Fingerprint     string
	Score           int
	Status          Status
	BookedMeetingID *uuid.UUID
	ClientID        *uuid.UUID
	ProjectID       *uuid.UUID
	ConvertedAt     *time.Time
	IsDeleted       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsConverted reports whether the lead already produced a client and project.
func (l Lead) IsConverted() bool {
	return l.ConvertedAt != nil
}

// Fingerprint is the dedup key: md5 hex of lower(email) + "-" + lower(company).
func Fingerprint(email, company string) string {
	key := strings.ToLower(strings.TrimSpace(email)) + "-" + strings.ToLower(strings.TrimSpace(company))
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// EnrichNotes appends the budget, project type and timeline answers to the
// free-text notes so staff see them in one place.
func EnrichNotes(notes, budgetRange, projectType, timeline string) string {
	lines := []string{strings.TrimSpace(notes)}
	if budgetRange != "" {
		lines = append(lines, "Budget: "+budgetRange)
	}
	if projectType != "" {
		lines = append(lines, "Type: "+projectType)
	}
	if timeline != "" {
		lines = append(lines, "Timeline: "+timeline)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
