// Package domain holds the project lifecycle rules.
package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Stage is a project lifecycle status.
type Stage string

const (
	StageIntake Stage = "intake"
	StageCopy   Stage = "copy"
	StageDesign Stage = "design"
	StageBuild  Stage = "build"
	StageQA     Stage = "qa"
	StageReview Stage = "review"
	StageLive   Stage = "live"
	StageClosed Stage = "closed"
)

// Stages is the fixed forward order every project walks through.
var Stages = []Stage{StageIntake, StageCopy, StageDesign, StageBuild, StageQA, StageReview, StageLive, StageClosed}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool { return s.Index() >= 0 }

// IsValidStage is the validator hook for the project_stage tag.
func IsValidStage(s string) bool { return Stage(s).IsValid() }

// Next returns the stage after s. closed has no next stage.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i == len(Stages)-1 {
		return "", false
	}
	return Stages[i+1], true
}

// CanTransition allows exactly one step forward. Skips, repeats and
// backward moves are rejected.
func CanTransition(from, to Stage) bool {
	next, ok := from.Next()
	return ok && next == to
}

// Progress is the display percentage for a stage over the delivery walk
// intake through live. closed counts as complete.
func Progress(s Stage) int {
	if s == StageClosed {
		return 100
	}
	i := s.Index()
	if i < 0 {
		return 0
	}
	delivery := StageLive.Index() + 1
	return int(math.Round(float64(i+1) / float64(delivery) * 100))
}

// Package is the delivery tier sold to a client.
type Package string

const (
	PackageStarter  Package = "starter"
	PackageStandard Package = "standard"
	PackagePremium  Package = "premium"
)

// IsValid reports whether p is a known package.
func (p Package) IsValid() bool {
	switch p {
	case PackageStarter, PackageStandard, PackagePremium:
		return true
	}
	return false
}

// IsValidPackage is the validator hook for the package_tier tag.
func IsValidPackage(p string) bool { return Package(p).IsValid() }

// Packages lists the tiers from smallest to largest.
func Packages() []Package {
	return []Package{PackageStarter, PackageStandard, PackagePremium}
}

// DefaultTech is the stack assigned to new projects.
const DefaultTech = "nextjs_vercel"

// Project is a client engagement.
type Project struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	Package         Package
	Status          Stage
	Milestones      map[Stage]time.Time
	Tech            string
	LaunchChecklist map[string]bool
	RepoURL         *string
	StagingURL      *string
	InternalNotes   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Reached reports whether the project is at or beyond stage s.
func (p Project) Reached(s Stage) bool {
	return p.Status.Index() >= s.Index()
}
