// Package domain holds the monthly client report and its reporting period.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Period is one calendar month in UTC.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewPeriod validates month and year.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("month %d out of range", month)
	}
	if year < 2020 || year > 9999 {
		return Period{}, fmt.Errorf("year %d out of range", year)
	}
	return Period{Year: year, Month: month}, nil
}

// PreviousMonth is the period before the month containing now.
func PreviousMonth(now time.Time) Period {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return Period{Year: first.Year(), Month: int(first.Month())}
}

// Bounds returns [start of month, start of next month).
func (p Period) Bounds() (time.Time, time.Time) {
	from := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Label is the human form, e.g. "February 2026".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", time.Month(p.Month), p.Year)
}

// DocumentKey is where the report PDF of a client month is stored.
func DocumentKey(clientID uuid.UUID, p Period) string {
	return fmt.Sprintf("reports/%s/%04d-%02d.pdf", clientID, p.Year, p.Month)
}

type ProjectSnapshot struct {
	ID         uuid.UUID `json:"id"`
	Package    string    `json:"package"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	StagingURL *string   `json:"stagingUrl,omitempty"`
}

type PaymentSummary struct {
	PaidInvoices int    `json:"paidInvoices"`
	PaidTotal    int64  `json:"paidTotal"`
	Currency     string `json:"currency"`
}

type SubscriptionSnapshot struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
}

// Data is the measured part of a report.
type Data struct {
	Period       Period                `json:"period"`
	Projects     []ProjectSnapshot     `json:"projects"`
	Payments     PaymentSummary        `json:"payments"`
	Activity     map[string]int        `json:"activity"`
	Subscription *SubscriptionSnapshot `json:"subscription,omitempty"`
}

type Recommendation struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Priority        string `json:"priority"`
	EstimatedImpact string `json:"estimatedImpact"`
}

// Insights is the written assessment of a report month.
type Insights struct {
	Summary             string           `json:"summary"`
	KeyAchievements     []string         `json:"keyAchievements"`
	AreasForImprovement []string         `json:"areasForImprovement"`
	Recommendations     []Recommendation `json:"recommendations"`
	PerformanceScore    int              `json:"performanceScore"`
	SecurityScore       int              `json:"securityScore"`
	NextMonthFocus      []string         `json:"nextMonthFocus"`
}

type Report struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Period    Period
	Data      Data
	Insights  Insights
	PDFKey    *string
	CreatedAt time.Time
}
