package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"agency_portal_backend/internal/adapters/storage"
	"agency_portal_backend/internal/audit"
	clientservice "agency_portal_backend/internal/clients/service"
	"agency_portal_backend/internal/copywriter"
	leaddomain "agency_portal_backend/internal/leads/domain"
	leadrepo "agency_portal_backend/internal/leads/repository"
	"agency_portal_backend/internal/meetings/domain"
	"agency_portal_backend/internal/meetings/repository"
	"agency_portal_backend/internal/meetings/transport"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/db"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// maxAudioBytes matches the transcription endpoint's upload limit.
const maxAudioBytes = 25 << 20

const inlineAudioName = "audio.m4a"

type Store interface {
	Create(ctx context.Context, q db.Querier, m domain.Meeting) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Meeting, error)
	SaveTranscription(ctx context.Context, id uuid.UUID, recordingKey *string, transcriptKey string, analysis domain.Analysis) error
	CreateAsset(ctx context.Context, a repository.Asset) error
}

type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (leaddomain.Lead, error)
	UpdateStatus(ctx context.Context, q db.Querier, id uuid.UUID, from, to leaddomain.Status) error
	SetBookedMeeting(ctx context.Context, q db.Querier, id, meetingID uuid.UUID) error
	AppendNotes(ctx context.Context, id uuid.UUID, text string) error
}

type Converter interface {
	Convert(ctx context.Context, leadID uuid.UUID, in clientservice.ConversionInput) (clientservice.ConversionResult, error)
}

// Transcriber turns call audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, fileName string, audio io.Reader) (string, error)
}

type Analyzer interface {
	AnalyzeTranscript(ctx context.Context, transcript string) (copywriter.MeetingAnalysis, error)
}

type Deps struct {
	Store       Store
	Leads       LeadStore
	Converter   Converter
	Transcriber Transcriber
	Analyzer    Analyzer
	Objects     storage.ObjectStore
	Tx          db.Transactor
	Audit       audit.Recorder
	Log         *logger.Logger
}

type Service struct {
	Deps
}

func New(deps Deps) *Service {
	return &Service{Deps: deps}
}

// Book schedules a meeting. A discovery call for a lead records the meeting
// on the lead and moves it to discovery_booked when its status allows.
func (s *Service) Book(ctx context.Context, req transport.BookMeetingRequest) (transport.MeetingResponse, error) {
	typ := domain.Type(req.Type)
	if !typ.IsValid() {
		return transport.MeetingResponse{}, apperr.Validation("unknown meeting type")
	}

	var lead *leaddomain.Lead
	if req.LeadID != nil {
		l, err := s.Leads.GetByID(ctx, *req.LeadID)
		if errors.Is(err, leadrepo.ErrNotFound) {
			return transport.MeetingResponse{}, apperr.NotFound("lead not found")
		}
		if err != nil {
			return transport.MeetingResponse{}, apperr.Internal("load lead", err)
		}
		lead = &l
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = domain.DefaultDurationMinutes
	}
	meeting := domain.Meeting{
		ID:              uuid.New(),
		LeadID:          req.LeadID,
		ClientID:        req.ClientID,
		ProjectID:       req.ProjectID,
		Type:            typ,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: duration,
	}

	err := s.Tx.WithinTx(ctx, func(q db.Querier) error {
		if err := s.Store.Create(ctx, q, meeting); err != nil {
			return apperr.Internal("create meeting", err)
		}
		if typ != domain.TypeDiscovery || lead == nil {
			return nil
		}
		if err := s.Leads.SetBookedMeeting(ctx, q, lead.ID, meeting.ID); err != nil {
			return apperr.Internal("link meeting to lead", err)
		}
		if !leaddomain.CanTransition(lead.Status, leaddomain.StatusDiscoveryBooked) {
			return nil
		}
		err := s.Leads.UpdateStatus(ctx, q, lead.ID, lead.Status, leaddomain.StatusDiscoveryBooked)
		if errors.Is(err, leadrepo.ErrStatusChanged) {
			return apperr.Conflict("lead status changed, retry the booking")
		}
		if err != nil {
			return apperr.Internal("update lead status", err)
		}
		return nil
	})
	if err != nil {
		return transport.MeetingResponse{}, err
	}

	if err := s.Audit.Record(ctx, audit.Entry{
		Action: audit.ActionMeetingBooked,
		Payload: map[string]any{
			"meetingId":   meeting.ID.String(),
			"type":        string(typ),
			"scheduledAt": meeting.ScheduledAt.Format(time.RFC3339),
		},
		ClientID:  meeting.ClientID,
		ProjectID: meeting.ProjectID,
	}); err != nil {
		s.Log.WithContext(ctx).Error("failed to audit meeting booking", "meetingId", meeting.ID, "error", err)
	}

	return toResponse(meeting), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.MeetingResponse, error) {
	m, err := s.Store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.MeetingResponse{}, apperr.NotFound("meeting not found")
	}
	if err != nil {
		return transport.MeetingResponse{}, apperr.Internal("load meeting", err)
	}
	return toResponse(m), nil
}

// Transcribe transcribes a call recording, stores the transcript and its
// analysis on the meeting, and for discovery calls applies the
// qualification rules to the lead.
func (s *Service) Transcribe(ctx context.Context, req transport.TranscribeRequest) (transport.TranscribeResponse, error) {
	key := strings.TrimSpace(req.StorageKey)
	inline := strings.TrimSpace(req.AudioBase64)
	if (key == "") == (inline == "") {
		return transport.TranscribeResponse{}, apperr.Validation("provide either storageKey or audioFile")
	}

	meeting, err := s.Store.GetByID(ctx, req.MeetingID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.TranscribeResponse{}, apperr.NotFound("meeting not found")
	}
	if err != nil {
		return transport.TranscribeResponse{}, apperr.Internal("load meeting", err)
	}

	audio, fileName, err := s.loadAudio(ctx, key, inline)
	if err != nil {
		return transport.TranscribeResponse{}, err
	}

	transcript, err := s.Transcriber.Transcribe(ctx, fileName, bytes.NewReader(audio))
	if err != nil {
		return transport.TranscribeResponse{}, apperr.External("transcription failed", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return transport.TranscribeResponse{}, apperr.Validation("recording produced an empty transcript")
	}

	result, err := s.Analyzer.AnalyzeTranscript(ctx, transcript)
	if err != nil {
		return transport.TranscribeResponse{}, apperr.External("transcript analysis failed", err)
	}
	analysis := domain.Analysis(result)

	transcriptKey := domain.TranscriptKey(meeting.ID)
	if err := s.Objects.Put(ctx, transcriptKey, "text/plain", []byte(transcript)); err != nil {
		return transport.TranscribeResponse{}, apperr.External("store transcript", err)
	}
	if err := s.Store.CreateAsset(ctx, repository.Asset{
		ID:          uuid.New(),
		ClientID:    meeting.ClientID,
		ProjectID:   meeting.ProjectID,
		MeetingID:   &meeting.ID,
		Kind:        repository.AssetTranscript,
		StorageKey:  transcriptKey,
		ContentType: "text/plain",
		SizeBytes:   int64(len(transcript)),
	}); err != nil {
		return transport.TranscribeResponse{}, apperr.Internal("record transcript asset", err)
	}

	var recordingKey *string
	if key != "" {
		recordingKey = &key
	}
	if err := s.Store.SaveTranscription(ctx, meeting.ID, recordingKey, transcriptKey, analysis); err != nil {
		return transport.TranscribeResponse{}, apperr.Internal("save transcription", err)
	}

	if err := s.Audit.Record(ctx, audit.Entry{
		Action:    audit.ActionMeetingTranscribed,
		Payload:   map[string]any{"meetingId": meeting.ID.String(), "transcriptLength": len(transcript)},
		ClientID:  meeting.ClientID,
		ProjectID: meeting.ProjectID,
	}); err != nil {
		s.Log.WithContext(ctx).Error("failed to audit transcription", "meetingId", meeting.ID, "error", err)
	}

	resp := transport.TranscribeResponse{
		MeetingID:     meeting.ID,
		Transcript:    transcript,
		TranscriptKey: transcriptKey,
		Analysis:      transport.AnalysisResponse(analysis),
	}
	if meeting.Type == domain.TypeDiscovery && meeting.LeadID != nil {
		resp.Qualification = s.qualifyLead(ctx, *meeting.LeadID, analysis)
		resp.LeadQualified = len(resp.Qualification) > 0
	}
	return resp, nil
}

func (s *Service) loadAudio(ctx context.Context, key, inline string) ([]byte, string, error) {
	if key != "" {
		if !storage.IsAudioFile(key) {
			return nil, "", apperr.Validation("storageKey is not an audio file")
		}
		audio, err := s.Objects.Get(ctx, key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", apperr.NotFound("recording not found")
		}
		if err != nil {
			return nil, "", apperr.External("load recording", err)
		}
		if err := storage.ValidateFileSize(int64(len(audio)), maxAudioBytes); err != nil {
			return nil, "", apperr.Validation(err.Error())
		}
		return audio, path.Base(key), nil
	}

	audio, err := base64.StdEncoding.DecodeString(inline)
	if err != nil {
		return nil, "", apperr.Validation("audioFile is not valid base64")
	}
	if err := storage.ValidateFileSize(int64(len(audio)), maxAudioBytes); err != nil {
		return nil, "", apperr.Validation(err.Error())
	}
	return audio, inlineAudioName, nil
}

// qualifyLead applies the discovery call rules. The transcription is
// already stored, so failures here are logged and do not fail the request.
func (s *Service) qualifyLead(ctx context.Context, leadID uuid.UUID, analysis domain.Analysis) []string {
	log := s.Log.WithContext(ctx).With("leadId", leadID)

	reasons := domain.Qualify(analysis)
	if len(reasons) == 0 {
		log.Info("discovery call did not qualify lead")
		return nil
	}

	lead, err := s.Leads.GetByID(ctx, leadID)
	if err != nil {
		log.Error("failed to load lead for discovery analysis", "error", err)
		return nil
	}
	if lead.IsConverted() {
		log.Info("lead already converted, skipping discovery qualification")
		return reasons
	}

	if err := s.Leads.AppendNotes(ctx, lead.ID, domain.QualificationNote(analysis.Summary, reasons)); err != nil {
		log.Error("failed to append discovery notes", "error", err)
	}
	if leaddomain.CanTransition(lead.Status, leaddomain.StatusQualified) {
		if err := s.Leads.UpdateStatus(ctx, nil, lead.ID, lead.Status, leaddomain.StatusQualified); err != nil {
			log.Warn("failed to qualify lead", "from", lead.Status, "error", err)
		}
	}

	result, err := s.Converter.Convert(ctx, lead.ID, clientservice.ConversionInput{
		KeyPoints:     analysis.KeyPoints,
		ClientNotes:   analysis.Summary,
		InternalNotes: domain.AnalysisNote(analysis),
	})
	if err != nil {
		log.Error("failed to convert qualified lead", "error", err)
		return reasons
	}
	log.Info("lead qualified by discovery call", "clientId", result.ClientID, "projectId", result.ProjectID, "reasons", reasons)
	return reasons
}

func toResponse(m domain.Meeting) transport.MeetingResponse {
	resp := transport.MeetingResponse{
		ID:              m.ID,
		Type:            string(m.Type),
		LeadID:          m.LeadID,
		ClientID:        m.ClientID,
		ProjectID:       m.ProjectID,
		ScheduledAt:     m.ScheduledAt,
		DurationMinutes: m.DurationMinutes,
		TranscriptKey:   m.TranscriptKey,
		Summary:         m.Summary,
		ActionItems:     m.ActionItems,
	}
	if resp.ActionItems == nil {
		resp.ActionItems = []string{}
	}
	if m.Analysis != nil {
		a := transport.AnalysisResponse(*m.Analysis)
		resp.Analysis = &a
	}
	return resp
}
