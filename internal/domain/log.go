package domain

import "time"

// Step names recorded in the job log. Free-form strings are allowed but
// the pipeline only emits values from this vocabulary.
const (
	StepEnqueued = "enqueued"
	StepStart    = "start"
	StepClassify = "classify"
	StepExtract  = "extract"
	StepValidate = "validate"
	StepUpsert   = "upsert"
	StepComplete = "complete"
	StepError    = "error"
	StepRepair   = "repair"
)

// JobLog is one immutable observation about a job's progress.
// Rows are append-only; only the retention sweep removes them in bulk.
type JobLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID     string    `gorm:"type:text;not null;index" json:"job_id"`
	Step      string    `gorm:"type:text;not null" json:"step"`
	Message   string    `gorm:"type:text" json:"message"`
	Metadata  string    `gorm:"type:text" json:"metadata,omitempty"` // JSON-encoded structured payload
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for JobLog.
func (JobLog) TableName() string {
	return "job_logs"
}
