package copywriter

import (
	"fmt"
	"strings"
)

// ProposalBrief is what the writer knows about the prospect.
type ProposalBrief struct {
	Company            string
	Contact            string
	Package            string
	Features           []string
	Timeline           string
	CustomRequirements string
	DiscoveryNotes     string
}

func (b ProposalBrief) prompt() string {
	requirements := strings.TrimSpace(b.CustomRequirements)
	if requirements == "" {
		requirements = "None specified"
	}
	notes := strings.TrimSpace(b.DiscoveryNotes)
	if notes == "" {
		notes = "Standard web development project"
	}
	return fmt.Sprintf(`Create a proposal for:
Company: %s
Contact: %s
Package: %s (%s)
Timeline: %s
Custom Requirements: %s

Notes from discovery: %s`, b.Company, b.Contact, b.Package, strings.Join(b.Features, ", "), b.Timeline, requirements, notes)
}

// ProposalContent is the JSON shape the proposal writer returns.
type ProposalContent struct {
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

// MeetingAnalysis is the JSON shape the meeting analyst returns.
type MeetingAnalysis struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"keyPoints"`
	ActionItems []string `json:"actionItems"`
	Budget      string   `json:"budget"`
	Timeline    string   `json:"timeline"`
	Concerns    []string `json:"concerns"`
	NextSteps   []string `json:"nextSteps"`
}

// ReportFacts are the measured figures of one client month.
type ReportFacts struct {
	Company           string
	Plan              string
	Period            string
	ProjectCount      int
	ProjectStages     []string
	PaidInvoices      int
	PaidTotal         string
	ActivityByType    map[string]int
	SubscriptionState string
}

func (f ReportFacts) prompt() string {
	activity := make([]string, 0, len(f.ActivityByType))
	for _, kind := range []string{"project", "payment", "lead", "support"} {
		activity = append(activity, fmt.Sprintf("%s=%d", kind, f.ActivityByType[kind]))
	}
	return fmt.Sprintf(`Analyze this monthly report data for %s (%s):

Client Plan: %s
Subscription: %s
Number of Projects: %d (stages: %s)
Paid invoices: %d totalling %s
Activity: %s`, f.Company, f.Period, f.Plan, f.SubscriptionState, f.ProjectCount, strings.Join(f.ProjectStages, ", "),
		f.PaidInvoices, f.PaidTotal, strings.Join(activity, ", "))
}

type Recommendation struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Priority        string `json:"priority"`
	EstimatedImpact string `json:"estimatedImpact"`
}

// ReportInsights is the JSON shape the report analyst returns.
type ReportInsights struct {
	Summary             string           `json:"summary"`
	KeyAchievements     []string         `json:"keyAchievements"`
	AreasForImprovement []string         `json:"areasForImprovement"`
	Recommendations     []Recommendation `json:"recommendations"`
	PerformanceScore    int              `json:"performanceScore"`
	SecurityScore       int              `json:"securityScore"`
	NextMonthFocus      []string         `json:"nextMonthFocus"`
}
