package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository handles ingestion job persistence. The job table is the
// single source of truth for worker coordination: the only atomic
// operation the pipeline depends on is the conditional claim update.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts a job if no job exists for its storage path (or content
// hash, when provided). Returns the stored job and whether a new row was
// created; a duplicate is a success-no-op, never an error.
func (r *JobRepository) Enqueue(ctx context.Context, job *domain.IngestJob) (*domain.IngestJob, bool, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusQueued
	}
	if job.DocType == "" {
		job.DocType = domain.DocTypeUnknown
	}

	if job.ContentHash != "" {
		var existing domain.IngestJob
		err := r.db.WithContext(ctx).
			First(&existing, "content_hash = ?", job.ContentHash).Error
		if err == nil {
			return &existing, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	// Bare DO NOTHING covers both unique keys: the storage path and the
	// partial content hash index. A concurrent enqueue that lost the race
	// on either one resolves to the surviving row below.
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(job)
	if res.Error != nil {
		return nil, false, res.Error
	}

	if res.RowsAffected == 0 {
		var existing domain.IngestJob
		err := r.db.WithContext(ctx).
			First(&existing, "storage_path = ?", job.StoragePath).Error
		if errors.Is(err, gorm.ErrRecordNotFound) && job.ContentHash != "" {
			err = r.db.WithContext(ctx).
				First(&existing, "content_hash = ?", job.ContentHash).Error
		}
		if err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}

	return job, true, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	var job domain.IngestJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNext atomically claims the oldest queued job. The claim is a single
// conditional update guarded by status = 'queued', so two concurrent
// dispatchers can never both win the same job. Returns nil with no error
// when the queue is empty.
func (r *JobRepository) ClaimNext(ctx context.Context) (*domain.IngestJob, error) {
	for {
		var candidate domain.IngestJob
		err := r.db.WithContext(ctx).
			Where("status = ?", domain.JobStatusQueued).
			Order("created_at ASC").
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		claimed, err := r.Claim(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if claimed != nil {
			return claimed, nil
		}
		// Another dispatcher won this candidate; try the next one.
	}
}

// Claim atomically transitions one specific job from queued to working,
// incrementing its attempt counter. Returns nil without error when the
// job was not in queued state (already claimed or terminal).
func (r *JobRepository) Claim(ctx context.Context, id string) (*domain.IngestJob, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.IngestJob{}).
		Where("id = ? AND status = ?", id, domain.JobStatusQueued).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusWorking,
			"attempts":   gorm.Expr("attempts + 1"),
			"started_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// UpdateClassification records the derived document type and owning
// contract on a claimed job.
func (r *JobRepository) UpdateClassification(ctx context.Context, id string, docType domain.DocumentType, contractID string) error {
	return r.db.WithContext(ctx).
		Model(&domain.IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"doc_type":    docType,
			"contract_id": contractID,
		}).Error
}

// MarkDone transitions a working job to done.
func (r *JobRepository) MarkDone(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&domain.IngestJob{}).
		Where("id = ? AND status = ?", id, domain.JobStatusWorking).
		Updates(map[string]interface{}{
			"status":      domain.JobStatusDone,
			"last_error":  "",
			"finished_at": now,
		}).Error
}

// MarkFailed transitions a working job to failed, preserving the error
// message verbatim for operators and repair tooling.
func (r *JobRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&domain.IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      domain.JobStatusFailed,
			"last_error":  errMsg,
			"finished_at": now,
		}).Error
}

// ResetToQueued is the repair transition failed -> queued. The last error
// is cleared; the attempt counter is preserved so the max-attempts ceiling
// keeps meaning across repairs.
func (r *JobRepository) ResetToQueued(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.IngestJob{}).
		Where("id = ? AND status = ?", id, domain.JobStatusFailed).
		Updates(map[string]interface{}{
			"status":      domain.JobStatusQueued,
			"last_error":  "",
			"started_at":  nil,
			"finished_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s is not in failed state", id)
	}
	return nil
}

// UpdateStoragePath rewrites the job's path reference after a repair
// rename of the underlying object.
func (r *JobRepository) UpdateStoragePath(ctx context.Context, id, newPath string) error {
	return r.db.WithContext(ctx).
		Model(&domain.IngestJob{}).
		Where("id = ?", id).
		Update("storage_path", newPath).Error
}

// List retrieves jobs filtered by contract and/or status, newest first.
func (r *JobRepository) List(ctx context.Context, contractID string, status domain.JobStatus, limit int) ([]domain.IngestJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Model(&domain.IngestJob{})
	if contractID != "" {
		query = query.Where("contract_id = ?", contractID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var jobs []domain.IngestJob
	if err := query.Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListStale returns working jobs whose last update is older than the
// staleness threshold. They are surfaced to operators, never auto-failed:
// the external call may still be running and a blind retry risks
// duplicate side effects.
func (r *JobRepository) ListStale(ctx context.Context, olderThan time.Duration) ([]domain.IngestJob, error) {
	cutoff := time.Now().Add(-olderThan)
	var jobs []domain.IngestJob
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.JobStatusWorking, cutoff).
		Order("updated_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListFailedMatching returns failed jobs whose last error matches the
// given signature substring, optionally scoped to one contract.
func (r *JobRepository) ListFailedMatching(ctx context.Context, errorSignature, contractID string) ([]domain.IngestJob, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", domain.JobStatusFailed)
	if errorSignature != "" {
		query = query.Where("last_error LIKE ?", "%"+errorSignature+"%")
	}
	if contractID != "" {
		query = query.Where("contract_id = ?", contractID)
	}

	var jobs []domain.IngestJob
	if err := query.Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListBroken returns failed jobs missing their contract association or
// carrying an unknown document type, the targets of path repair.
func (r *JobRepository) ListBroken(ctx context.Context, contractID string) ([]domain.IngestJob, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", domain.JobStatusFailed).
		Where("contract_id = '' OR doc_type = ?", domain.DocTypeUnknown)
	if contractID != "" {
		query = query.Where("contract_id = ?", contractID)
	}

	var jobs []domain.IngestJob
	if err := query.Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeleteTerminalOlderThan removes done and failed jobs whose last update
// is older than the retention window. Returns the number removed.
func (r *JobRepository) DeleteTerminalOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]domain.JobStatus{domain.JobStatusDone, domain.JobStatusFailed}, cutoff).
		Delete(&domain.IngestJob{})
	return res.RowsAffected, res.Error
}

// CountByStatus counts jobs in the given status.
func (r *JobRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.IngestJob{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
