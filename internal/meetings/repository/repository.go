package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agency_portal_backend/internal/meetings/domain"
	"agency_portal_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("meeting not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const meetingColumns = `
	id, lead_id, client_id, project_id, type, scheduled_at, duration_minutes,
	recording_key, transcript_key, ai_summary, action_items, analysis, created_at, updated_at`

func scanMeeting(row pgx.Row) (domain.Meeting, error) {
	var m domain.Meeting
	var typ string
	var actionItems, analysis []byte
	err := row.Scan(&m.ID, &m.LeadID, &m.ClientID, &m.ProjectID, &typ, &m.ScheduledAt, &m.DurationMinutes,
		&m.RecordingKey, &m.TranscriptKey, &m.Summary, &actionItems, &analysis, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Meeting{}, ErrNotFound
	}
	if err != nil {
		return domain.Meeting{}, err
	}

	m.Type = domain.Type(typ)
	if !m.Type.IsValid() {
		return domain.Meeting{}, fmt.Errorf("meeting %s has invalid type %q", m.ID, typ)
	}
	if len(actionItems) > 0 {
		if err := json.Unmarshal(actionItems, &m.ActionItems); err != nil {
			return domain.Meeting{}, fmt.Errorf("decode action items: %w", err)
		}
	}
	if len(analysis) > 0 {
		m.Analysis = &domain.Analysis{}
		if err := json.Unmarshal(analysis, m.Analysis); err != nil {
			return domain.Meeting{}, fmt.Errorf("decode analysis: %w", err)
		}
	}
	return m, nil
}

func (r *Repository) Create(ctx context.Context, q db.Querier, m domain.Meeting) error {
	if q == nil {
		q = r.pool
	}
	_, err := q.Exec(ctx, `
		INSERT INTO meetings (id, lead_id, client_id, project_id, type, scheduled_at, duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.LeadID, m.ClientID, m.ProjectID, string(m.Type), m.ScheduledAt, m.DurationMinutes)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Meeting, error) {
	return scanMeeting(r.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
}

// SaveTranscription stores the transcript location and the analysis. A
// repeated transcription overwrites the previous result.
func (r *Repository) SaveTranscription(ctx context.Context, id uuid.UUID, recordingKey *string, transcriptKey string, analysis domain.Analysis) error {
	actionItems := analysis.ActionItems
	if actionItems == nil {
		actionItems = []string{}
	}
	itemsJSON, err := json.Marshal(actionItems)
	if err != nil {
		return err
	}
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings
		SET recording_key = COALESCE($2, recording_key), transcript_key = $3, ai_summary = $4,
		    action_items = $5, analysis = $6, updated_at = now()
		WHERE id = $1
	`, id, recordingKey, transcriptKey, analysis.Summary, itemsJSON, analysisJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Asset is a stored file linked to a meeting, client or project.
type Asset struct {
	ID          uuid.UUID
	ClientID    *uuid.UUID
	ProjectID   *uuid.UUID
	MeetingID   *uuid.UUID
	Kind        string
	StorageKey  string
	ContentType string
	SizeBytes   int64
}

const AssetTranscript = "transcript"

func (r *Repository) CreateAsset(ctx context.Context, a Asset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assets (id, client_id, project_id, meeting_id, kind, storage_key, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.ClientID, a.ProjectID, a.MeetingID, a.Kind, a.StorageKey, a.ContentType, a.SizeBytes)
	return err
}
