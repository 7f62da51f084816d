package audit

import (
	"context"
	"testing"

	"agency_portal_backend/platform/logger"
)

func TestActivityType(t *testing.T) {
	cases := map[string]string{
		ActionLeadConverted:             ActivityProject,
		ActionInfrastructureProvisioned: ActivityProject,
		"launch_checklist_completed":    ActivityProject,
		ActionInvoicePaid:               ActivityPayment,
		ActionPaymentSucceeded:          ActivityPayment,
		ActionLeadCreated:               ActivityLead,
		ActionProposalAccepted:          ActivityLead,
		"support_ticket_opened":         ActivitySupport,
		ActionSubscriptionCreated:       ActivityProject,
		ActionMeetingTranscribed:        ActivityProject,
	}
	for action, want := range cases {
		if got := ActivityType(action); got != want {
			t.Fatalf("%s: expected %s, got %s", action, want, got)
		}
	}
}

func TestPayloadHash_StableAcrossKeyOrder(t *testing.T) {
	a, err := PayloadHash(map[string]any{"leadId": "1", "source": "referral"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := PayloadHash(map[string]any{"source": "referral", "leadId": "1"})
	if a != b {
		t.Fatalf("expected equal hashes, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}

	c, _ := PayloadHash(map[string]any{"leadId": "2", "source": "referral"})
	if a == c {
		t.Fatalf("expected different payloads to hash differently")
	}
}

func TestActor(t *testing.T) {
	ctx := context.Background()
	if got := Actor(ctx, ""); got != SystemActor {
		t.Fatalf("expected system actor, got %s", got)
	}

	ctx = context.WithValue(ctx, logger.ActorKey, "uid-42")
	if got := Actor(ctx, ""); got != "uid-42" {
		t.Fatalf("expected context actor, got %s", got)
	}
	if got := Actor(ctx, "stripe"); got != "stripe" {
		t.Fatalf("expected explicit actor to win, got %s", got)
	}
}
