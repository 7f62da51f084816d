// Package domain holds meetings, their recordings and the discovery call
// qualification rules.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeDiscovery Type = "discovery"
	TypeKickoff   Type = "kickoff"
	TypeReview    Type = "review"
	TypeSupport   Type = "support"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeDiscovery, TypeKickoff, TypeReview, TypeSupport:
		return true
	}
	return false
}

// IsValidType is the validator hook for the meeting_type tag.
func IsValidType(s string) bool { return Type(s).IsValid() }

// DefaultDurationMinutes applies when a booking gives no duration.
const DefaultDurationMinutes = 30

// Analysis is the structured reading of a call transcript.
type Analysis struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"keyPoints"`
	ActionItems []string `json:"actionItems"`
	Budget      string   `json:"budget,omitempty"`
	Timeline    string   `json:"timeline,omitempty"`
	Concerns    []string `json:"concerns"`
	NextSteps   []string `json:"nextSteps"`
}

type Meeting struct {
	ID              uuid.UUID
	LeadID          *uuid.UUID
	ClientID        *uuid.UUID
	ProjectID       *uuid.UUID
	Type            Type
	ScheduledAt     time.Time
	DurationMinutes int
	RecordingKey    *string
	TranscriptKey   *string
	Summary         *string
	ActionItems     []string
	Analysis        *Analysis
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TranscriptKey is where the plain-text transcript of a meeting is stored.
func TranscriptKey(meetingID uuid.UUID) string {
	return fmt.Sprintf("transcripts/meeting-%s-transcript.txt", meetingID)
}

// Qualification reasons, in the order they are checked.
const (
	ReasonBudget    = "Budget discussed."
	ReasonUrgent    = "Urgent timeline."
	ReasonTechnical = "Technical requirements identified."
)

var technicalKeywords = []string{"ecommerce", "e-commerce", "cms", "integration"}

// Qualify applies the discovery call rules: a budget with an amount, an
// urgent timeline, or key points naming technical scope. It returns the
// reasons that matched; none means the call does not qualify the lead.
func Qualify(a Analysis) []string {
	var reasons []string
	if strings.Contains(a.Budget, "$") {
		reasons = append(reasons, ReasonBudget)
	}
	timeline := strings.ToLower(a.Timeline)
	if strings.Contains(timeline, "urgent") || strings.Contains(timeline, "soon") {
		reasons = append(reasons, ReasonUrgent)
	}
	if mentionsAny(a.KeyPoints, technicalKeywords) {
		reasons = append(reasons, ReasonTechnical)
	}
	return reasons
}

// QualificationNote is the paragraph appended to the lead notes.
func QualificationNote(summary string, reasons []string) string {
	return fmt.Sprintf("Discovery Call Analysis:\n%s\n\nQualification: %s", summary, strings.Join(reasons, " "))
}

// AnalysisNote is the internal project note built from a discovery call.
// Empty sections are left out.
func AnalysisNote(a Analysis) string {
	var b strings.Builder
	b.WriteString("Discovery call analysis:\n")
	b.WriteString(a.Summary)
	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n\n" + title + ":")
		for _, item := range items {
			b.WriteString("\n- " + item)
		}
	}
	writeList("Key points", a.KeyPoints)
	writeList("Action items", a.ActionItems)
	if a.Budget != "" {
		b.WriteString("\n\nBudget: " + a.Budget)
	}
	if a.Timeline != "" {
		b.WriteString("\n\nTimeline: " + a.Timeline)
	}
	writeList("Concerns", a.Concerns)
	writeList("Next steps", a.NextSteps)
	return b.String()
}

func mentionsAny(points, keywords []string) bool {
	for _, p := range points {
		lower := strings.ToLower(p)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
	}
	return false
}
