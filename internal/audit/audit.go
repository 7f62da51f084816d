// Package audit appends audit log and activity feed records for every state
// change. Records are insert-only.
package audit

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"
)

// SystemActor is recorded when no authenticated user triggered the change.
const SystemActor = "system"

// Action names written to the audit log.
const (
	ActionLeadCreated               = "lead_created"
	ActionLeadQualified             = "lead_qualified"
	ActionLeadStatusChanged         = "lead_status_changed"
	ActionLeadDeleted               = "lead_deleted"
	ActionLeadConverted             = "lead_converted_to_project"
	ActionProposalGenerated         = "proposal_generated"
	ActionProposalSent              = "proposal_sent"
	ActionProposalDeclined          = "proposal_declined"
	ActionProposalAccepted          = "proposal_accepted"
	ActionInvoicePaid               = "invoice_paid"
	ActionInvoicePaymentFailed      = "invoice_payment_failed"
	ActionMilestonePaymentReceived  = "milestone_payment_received"
	ActionSubscriptionCreated       = "subscription_created"
	ActionSubscriptionUpdated       = "subscription_updated"
	ActionSubscriptionCanceled      = "subscription_canceled"
	ActionPaymentSucceeded          = "payment_succeeded"
	ActionProjectStageAdvanced      = "project_stage_advanced"
	ActionProjectChecklistUpdated   = "project_checklist_updated"
	ActionInfrastructureProvisioned = "project_infrastructure_provisioned"
	ActionMeetingBooked             = "meeting_booked"
	ActionMeetingTranscribed        = "meeting_transcribed"
	ActionMonthlyReportGenerated    = "monthly_report_generated"
)

// Activity types shown in the dashboard feed.
const (
	ActivityProject = "project"
	ActivityPayment = "payment"
	ActivityLead    = "lead"
	ActivitySupport = "support"
)

// Entry describes one state-changing action.
type Entry struct {
	// ByUID overrides the actor taken from the context.
	ByUID     string
	Action    string
	Payload   map[string]any
	ClientID  *uuid.UUID
	ProjectID *uuid.UUID
}

// Activity is a dashboard feed item.
type Activity struct {
	ID        uuid.UUID  `json:"id"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	UserID    string     `json:"userId"`
	ClientID  *uuid.UUID `json:"clientId,omitempty"`
	ProjectID *uuid.UUID `json:"projectId,omitempty"`
	CreatedAt time.Time  `json:"timestamp"`
}

// Recorder is what domain services depend on.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	RecordTx(ctx context.Context, q db.Querier, entry Entry) error
}

// Writer persists entries in PostgreSQL.
type Writer struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

var _ Recorder = (*Writer)(nil)

// NewWriter creates a Writer.
func NewWriter(pool *pgxpool.Pool, log *logger.Logger) *Writer {
	return &Writer{pool: pool, log: log}
}

// Record appends entry outside of any caller transaction.
func (w *Writer) Record(ctx context.Context, entry Entry) error {
	return db.InTx(ctx, w.pool, func(tx pgx.Tx) error {
		return w.RecordTx(ctx, tx, entry)
	})
}

// RecordTx appends the audit log row and the activity row using q.
func (w *Writer) RecordTx(ctx context.Context, q db.Querier, entry Entry) error {
	actor := Actor(ctx, entry.ByUID)
	hash, err := PayloadHash(entry.Payload)
	if err != nil {
		return fmt.Errorf("hash audit payload: %w", err)
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO audit_logs (id, by_uid, action, payload_hash, client_id, project_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), actor, entry.Action, hash, entry.ClientID, entry.ProjectID); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO activities (id, message, type, user_id, client_id, project_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), fmt.Sprintf("%s by %s", entry.Action, actor), ActivityType(entry.Action), actor, entry.ClientID, entry.ProjectID); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	w.log.WithContext(ctx).Debug("audit recorded", "action", entry.Action, "actor", actor)
	return nil
}

// ListActivities returns the newest activities for a client.
func (w *Writer) ListActivities(ctx context.Context, clientID uuid.UUID, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := w.pool.Query(ctx, `
		SELECT id, message, type, user_id, client_id, project_id, created_at
		FROM activities
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Message, &a.Type, &a.UserID, &a.ClientID, &a.ProjectID, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// CountActivitiesBetween counts a client's activities per type in [from, to).
func (w *Writer) CountActivitiesBetween(ctx context.Context, clientID uuid.UUID, from, to time.Time) (map[string]int, error) {
	rows, err := w.pool.Query(ctx, `
		SELECT type, count(*)
		FROM activities
		WHERE client_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY type
	`, clientID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// ActivityType derives the feed category from the action name.
func ActivityType(action string) string {
	switch {
	case strings.Contains(action, "project"), strings.Contains(action, "launch"):
		return ActivityProject
	case strings.Contains(action, "payment"), strings.Contains(action, "invoice"):
		return ActivityPayment
	case strings.Contains(action, "lead"), strings.Contains(action, "proposal"):
		return ActivityLead
	case strings.Contains(action, "ticket"), strings.Contains(action, "support"):
		return ActivitySupport
	default:
		return ActivityProject
	}
}

// PayloadHash returns the hex blake2b-256 digest of the payload's JSON form.
// encoding/json sorts map keys, so equal payloads hash equally.
func PayloadHash(payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Actor picks the explicit uid, then the authenticated caller, then system.
func Actor(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if actor, ok := ctx.Value(logger.ActorKey).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
