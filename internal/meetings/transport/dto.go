package transport

import (
	"time"

	"github.com/google/uuid"
)

type BookMeetingRequest struct {
	Type            string     `json:"type" validate:"required,meeting_type"`
	LeadID          *uuid.UUID `json:"leadId"`
	ClientID        *uuid.UUID `json:"clientId"`
	ProjectID       *uuid.UUID `json:"projectId"`
	ScheduledAt     time.Time  `json:"scheduledAt" validate:"required"`
	DurationMinutes int        `json:"durationMinutes" validate:"omitempty,min=15,max=480"`
}

// TranscribeRequest names the recording by storage key or carries it inline
// as base64. Exactly one must be set.
type TranscribeRequest struct {
	MeetingID   uuid.UUID `json:"meetingId" validate:"required"`
	StorageKey  string    `json:"storageKey" validate:"omitempty,max=512"`
	AudioBase64 string    `json:"audioFile"`
}

type AnalysisResponse struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"keyPoints"`
	ActionItems []string `json:"actionItems"`
	Budget      string   `json:"budget,omitempty"`
	Timeline    string   `json:"timeline,omitempty"`
	Concerns    []string `json:"concerns"`
	NextSteps   []string `json:"nextSteps"`
}

type MeetingResponse struct {
	ID              uuid.UUID         `json:"id"`
	Type            string            `json:"type"`
	LeadID          *uuid.UUID        `json:"leadId,omitempty"`
	ClientID        *uuid.UUID        `json:"clientId,omitempty"`
	ProjectID       *uuid.UUID        `json:"projectId,omitempty"`
	ScheduledAt     time.Time         `json:"scheduledAt"`
	DurationMinutes int               `json:"durationMinutes"`
	TranscriptKey   *string           `json:"transcriptKey,omitempty"`
	Summary         *string           `json:"aiSummary,omitempty"`
	ActionItems     []string          `json:"actionItems"`
	Analysis        *AnalysisResponse `json:"analysis,omitempty"`
}

type TranscribeResponse struct {
	MeetingID     uuid.UUID        `json:"meetingId"`
	Transcript    string           `json:"transcript"`
	TranscriptKey string           `json:"transcriptUrl"`
	Analysis      AnalysisResponse `json:"analysis"`
	LeadQualified bool             `json:"leadQualified"`
	Qualification []string         `json:"qualification,omitempty"`
}
