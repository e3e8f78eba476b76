package domain

import "time"

// JobStatus represents the status of an ingest job.
// Values include JobStatusRunning, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobKind describes what started an ingest job.
type JobKind string

const (
	JobKindVideo     JobKind = "video"
	JobKindPlaylist  JobKind = "playlist"
	JobKindReprocess JobKind = "reprocess"
)

// IngestJob records one invocation of the pipeline over one or more identifiers.
// Its ID doubles as the correlation token handed back to callers.
type IngestJob struct {
	ID             string     `gorm:"type:text;primaryKey" json:"id"`
	Kind           JobKind    `gorm:"type:text;not null" json:"kind"`
	Input          string     `gorm:"type:text;not null;index" json:"input"`
	Status         JobStatus  `gorm:"type:text;default:running" json:"status"`
	TotalItems     int        `gorm:"default:0" json:"total_items"`
	ProcessedItems int        `gorm:"default:0" json:"processed_items"`
	FailedItems    int        `gorm:"default:0" json:"failed_items"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorLog       string     `json:"error_log,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for IngestJob.
func (IngestJob) TableName() string {
	return "ingest_jobs"
}
