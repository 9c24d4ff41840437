package dto

import "time"

// StoredPDFResponse describes a rendered invoice saved to object storage.
type StoredPDFResponse struct {
	Success  bool              `json:"success"`
	URL      string            `json:"url"`
	Path     string            `json:"path"`
	Filename string            `json:"filename"`
	Metadata StoredPDFMetadata `json:"metadata"`
}

type StoredPDFMetadata struct {
	Bucket      string     `json:"bucket"`
	Size        int64      `json:"size"`
	ContentType string     `json:"contentType"`
	GeneratedAt time.Time  `json:"generatedAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// CleanupStats summarizes one storage TTL sweep.
type CleanupStats struct {
	TotalFiles     int      `json:"totalFiles"`
	ExpiredFiles   int      `json:"expiredFiles"`
	DeletedFiles   int      `json:"deletedFiles"`
	Errors         []string `json:"errors"`
	ProcessingTime int64    `json:"processingTime"` // milliseconds
	DryRun         bool     `json:"dryRun"`
	Disabled       bool     `json:"disabled,omitempty"`
}

// DailyReportRequest is the body of every /api/reports render call.
type DailyReportRequest struct {
	Date     string  `json:"date" validate:"required,datetime=2006-01-02"`
	Driver   string  `json:"driver" validate:"required,max=100"`
	Count    int     `json:"count" validate:"gte=0"`
	Distance float64 `json:"distance" validate:"gte=0"` // km
	Note     string  `json:"note" validate:"max=2000"`
}

type ReportTemplateResponse struct {
	Type         string   `json:"type"`
	Template     string   `json:"template"`
	Placeholders []string `json:"placeholders"`
}
