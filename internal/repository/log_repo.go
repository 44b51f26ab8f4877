package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"gorm.io/gorm"
)

// LogRepository persists the append-only per-job processing trail.
type LogRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a new LogRepository.
func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Append records one processing step for a job. Metadata is optional;
// when present it is stored as a JSON document. A marshal failure drops
// the metadata but never the log line.
func (r *LogRepository) Append(ctx context.Context, jobID, step, message string, metadata map[string]interface{}) error {
	entry := domain.JobLog{
		JobID:   jobID,
		Step:    step,
		Message: message,
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = string(raw)
		}
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}

// ListByJob returns a job's log entries oldest first, so reading top to
// bottom replays the pipeline in execution order.
func (r *LogRepository) ListByJob(ctx context.Context, jobID string) ([]domain.JobLog, error) {
	var logs []domain.JobLog
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// DeleteOlderThan removes log entries older than the retention window.
// Logs are kept well past job retention so failure trails outlive the
// jobs that produced them.
func (r *LogRepository) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.JobLog{})
	return res.RowsAffected, res.Error
}
