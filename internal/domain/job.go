package domain

import "time"

// JobStatus represents the status of an ingestion job.
// Values include JobStatusQueued, JobStatusWorking, JobStatusDone, and JobStatusFailed.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusWorking JobStatus = "working"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Terminal reports whether the status is an end state for an attempt.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// IngestJob represents one tracked unit of work to ingest a single stored document.
// The storage path is the idempotency key: a second enqueue of the same path is a no-op.
type IngestJob struct {
	ID          string       `gorm:"type:text;primaryKey" json:"id"`
	StoragePath string       `gorm:"type:text;not null;uniqueIndex" json:"storage_path"`
	Project     string       `gorm:"type:text;index" json:"project"`
	DocType     DocumentType `gorm:"type:text;default:unknown" json:"doc_type"`
	Status      JobStatus    `gorm:"type:text;default:queued;index" json:"status"`
	Attempts    int          `gorm:"default:0" json:"attempts"`
	LastError   string       `json:"last_error,omitempty"`

	// ContractID is set once classification resolves the owning contract.
	// It may be empty until then; path repair re-derives it.
	ContractID string `gorm:"type:text;index" json:"contract_id,omitempty"`

	// ContentHash and ETag are optional idempotency hints from the upload flow.
	ContentHash string `gorm:"type:text;index" json:"content_hash,omitempty"`
	ETag        string `gorm:"type:text" json:"etag,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for IngestJob.
func (IngestJob) TableName() string {
	return "ingest_jobs"
}
