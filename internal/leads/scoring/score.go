// Package scoring computes the intake score of a lead submission.
// Scoring is pure and deterministic: identical input always yields the same score.
package scoring

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// Every submission starts here before factors apply.
	baseScore = 50.0

	businessEmailBonus = 10.0
	detailedNotesBonus = 5.0
	campaignBonus      = 5.0

	// Notes longer than this count as detailed.
	detailedNotesThreshold = 100

	minScore = 0
	maxScore = 100
)

// budgetMultipliers scale the score by declared budget range.
var budgetMultipliers = map[string]float64{
	"5k-10k":   1.0,
	"10k-25k":  1.2,
	"25k-50k":  1.5,
	"50k-100k": 1.8,
	"100k+":    2.0,
}

// timelineBonus rewards urgency. "immediate" is accepted as an alias of "asap".
var timelineBonus = map[string]float64{
	"asap":      15,
	"immediate": 15,
	"1-2weeks":  10,
	"1month":    5,
	"2-3months": 0,
	"flexible":  -5,
}

// sourceMultipliers rank acquisition channels by historical close rate.
var sourceMultipliers = map[string]float64{
	"referral": 1.3,
	"linkedin": 1.2,
	"website":  1.1,
	"google":   1.0,
	"facebook": 0.9,
	"other":    0.8,
}

// personalEmailDomains are free mailbox providers; anything else counts as a
// business address.
var personalEmailDomains = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
}

// Submission holds the fields that influence the score.
type Submission struct {
	BudgetRange string
	Timeline    string
	Source      string
	Email       string
	Notes       string
	UTMCampaign string
}

// Score returns the lead score in [0, 100].
// Factors apply in order: budget multiplier, timeline bonus, source
// multiplier, then the flat email, notes and campaign bonuses.
// Unknown budget, timeline or source values contribute nothing.
func Score(s Submission) int {
	score := baseScore

	if m, ok := budgetMultipliers[normalize(s.BudgetRange)]; ok {
		score *= m
	}
	if b, ok := timelineBonus[normalize(s.Timeline)]; ok {
		score += b
	}
	if m, ok := sourceMultipliers[normalize(s.Source)]; ok {
		score *= m
	}
	if domain := emailDomain(s.Email); domain != "" && !personalEmailDomains[domain] {
		score += businessEmailBonus
	}
	if utf8.RuneCountInString(s.Notes) > detailedNotesThreshold {
		score += detailedNotesBonus
	}
	if strings.TrimSpace(s.UTMCampaign) != "" {
		score += campaignBonus
	}

	return clamp(int(math.Round(score)))
}

// IsBusinessEmail reports whether the address is not on a free provider.
func IsBusinessEmail(email string) bool {
	domain := emailDomain(email)
	return domain != "" && !personalEmailDomains[domain]
}

func emailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func clamp(v int) int {
	return max(minScore, min(maxScore, v))
}
