package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type staticSource struct {
	kind     string
	findings []Finding
	err      error
}

func (s staticSource) Kind() string { return s.kind }

func (s staticSource) Find(context.Context) ([]Finding, error) { return s.findings, s.err }

func TestRun_CollectsFindingsAndCounts(t *testing.T) {
	c := NewChecker(logger.NewNop(),
		staticSource{kind: KindDuplicateFingerprint, findings: []Finding{{Kind: KindDuplicateFingerprint, Key: "jane@acme.com|acme", IDs: []string{"a", "b"}}}},
		staticSource{kind: KindDuplicateProposalNo},
	)
	c.now = func() time.Time { return time.Date(2026, time.March, 3, 3, 0, 0, 0, time.UTC) }

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Clean() || len(report.Findings) != 1 {
		t.Fatalf("expected one finding, got %+v", report.Findings)
	}
	if report.Counts[KindDuplicateFingerprint] != 1 || report.Counts[KindDuplicateProposalNo] != 0 {
		t.Fatalf("unexpected counts: %v", report.Counts)
	}
	if !report.CheckedAt.Equal(time.Date(2026, time.March, 3, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected check time %s", report.CheckedAt)
	}
}

func TestRun_CleanWhenNothingFound(t *testing.T) {
	report, err := NewChecker(logger.NewNop(), staticSource{kind: KindMissingMilestone}).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("expected clean report, got %+v", report.Findings)
	}
}

func TestRun_SourceFailureAborts(t *testing.T) {
	c := NewChecker(logger.NewNop(), staticSource{kind: KindOrphanClient, err: errors.New("connection reset")})
	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestIDSource(t *testing.T) {
	id := uuid.New()
	src := idSource{kind: KindMissingMilestone, list: func(context.Context) ([]uuid.UUID, error) { return []uuid.UUID{id}, nil }}

	findings, err := src.Find(context.Background())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(findings) != 1 || findings[0].IDs[0] != id.String() {
		t.Fatalf("expected one finding for %s, got %+v", id, findings)
	}

	empty := idSource{kind: KindMissingMilestone, list: func(context.Context) ([]uuid.UUID, error) { return nil, nil }}
	if findings, _ := empty.Find(context.Background()); len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}
