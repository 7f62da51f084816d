// Package reconcile reports records that an interrupted or concurrent write
// left inconsistent. It only reads; fixing a finding is a staff decision.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"agency_portal_backend/platform/logger"
)

// Kinds of finding.
const (
	KindDuplicateFingerprint   = "duplicate_fingerprint"
	KindDuplicateProposalNo    = "duplicate_proposal_number"
	KindUnconvertedBacklink    = "unconverted_backlink"
	KindOrphanClient           = "client_without_converted_lead"
	KindMissingMilestone       = "missing_milestone"
	KindDepositPaidNotStarted  = "deposit_paid_project_not_started"
	KindStaleScheduledFollowUp = "stale_scheduled_follow_up"
)

// Finding is one anomaly: what is wrong and which records carry it.
type Finding struct {
	Kind string   `json:"kind"`
	Key  string   `json:"key,omitempty"`
	IDs  []string `json:"ids"`
}

// Report is the outcome of one run.
type Report struct {
	CheckedAt time.Time      `json:"checkedAt"`
	Findings  []Finding      `json:"findings"`
	Counts    map[string]int `json:"counts"`
}

// Clean reports whether nothing was found.
func (r Report) Clean() bool { return len(r.Findings) == 0 }

// Source runs one check.
type Source interface {
	Kind() string
	Find(ctx context.Context) ([]Finding, error)
}

type Checker struct {
	sources []Source
	log     *logger.Logger
	now     func() time.Time
}

func NewChecker(log *logger.Logger, sources ...Source) *Checker {
	return &Checker{sources: sources, log: log, now: time.Now}
}

// Run executes every check. A failing check aborts the run.
func (c *Checker) Run(ctx context.Context) (Report, error) {
	report := Report{CheckedAt: c.now().UTC(), Findings: []Finding{}, Counts: map[string]int{}}
	for _, src := range c.sources {
		findings, err := src.Find(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("%s: %w", src.Kind(), err)
		}
		report.Counts[src.Kind()] = len(findings)
		report.Findings = append(report.Findings, findings...)
	}

	log := c.log.WithContext(ctx)
	for _, f := range report.Findings {
		log.Warn("reconcile finding", "kind", f.Kind, "key", f.Key, "ids", f.IDs)
	}
	log.Info("reconcile finished", "findings", len(report.Findings))
	return report, nil
}
