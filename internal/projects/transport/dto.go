package transport

import (
	"time"

	"github.com/google/uuid"
)

type UpdateProjectStatusRequest struct {
	Status string `json:"status" validate:"required,project_stage"`
}

type UpdateChecklistRequest struct {
	Items map[string]bool `json:"items" validate:"required,min=1,dive,keys,required,max=100,endkeys"`
}

type ProjectResponse struct {
	ID              uuid.UUID            `json:"id"`
	ClientID        uuid.UUID            `json:"clientId"`
	Package         string               `json:"package"`
	Status          string               `json:"status"`
	Progress        int                  `json:"progress"`
	Milestones      map[string]time.Time `json:"milestones"`
	Tech            string               `json:"tech"`
	LaunchChecklist map[string]bool      `json:"launchChecklist"`
	RepoURL         *string              `json:"repoUrl,omitempty"`
	StagingURL      *string              `json:"stagingUrl,omitempty"`
	InternalNotes   string               `json:"internalNotes,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}
