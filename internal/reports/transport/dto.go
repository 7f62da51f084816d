package transport

import (
	"github.com/google/uuid"
)

// GenerateReportRequest runs one client or, without clientId, every client
// on a care plan. A zero month and year mean the previous month.
type GenerateReportRequest struct {
	ClientID *uuid.UUID `json:"clientId"`
	Month    int        `json:"month" validate:"omitempty,min=1,max=12"`
	Year     int        `json:"year" validate:"omitempty,min=2020"`
}

type ReportResponse struct {
	ReportID uuid.UUID `json:"reportId"`
	ClientID uuid.UUID `json:"clientId"`
	Month    int       `json:"month"`
	Year     int       `json:"year"`
	PDFURL   string    `json:"pdfUrl,omitempty"`
	Summary  string    `json:"summary"`
}

type BatchResponse struct {
	Month     int `json:"month"`
	Year      int `json:"year"`
	Clients   int `json:"clients"`
	Generated int `json:"generated"`
	Failed    int `json:"failed"`
}
