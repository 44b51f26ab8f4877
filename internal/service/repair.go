package service

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/classify"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/logger"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/repository"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/storage"
)

// RepairService fixes failed jobs that are recoverable without human
// edits: paths that now classify cleanly, and filenames whose characters
// broke an upstream service. Repairs requeue; they never re-run the
// pipeline inline.
type RepairService struct {
	jobs        *repository.JobRepository
	logs        *repository.LogRepository
	contracts   *repository.ContractRepository
	storage     storage.ObjectStorage
	logger      *logger.Logger
	maxAttempts int
}

// NewRepairService creates a new RepairService.
func NewRepairService(
	jobs *repository.JobRepository,
	logs *repository.LogRepository,
	contracts *repository.ContractRepository,
	objectStorage storage.ObjectStorage,
	log *logger.Logger,
	maxAttempts int,
) *RepairService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RepairService{
		jobs:        jobs,
		logs:        logs,
		contracts:   contracts,
		storage:     objectStorage,
		logger:      log,
		maxAttempts: maxAttempts,
	}
}

func (s *RepairService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// RepairStats summarizes one repair sweep.
type RepairStats struct {
	Examined  int      `json:"examined"`
	Requeued  int      `json:"requeued"`
	Renamed   int      `json:"renamed"`
	Skipped   int      `json:"skipped"`
	Exhausted int      `json:"exhausted"`
	JobIDs    []string `json:"job_ids,omitempty"`
}

// RepairPaths re-examines failed jobs with a missing contract or unknown
// type. Jobs whose current path now classifies cleanly get their derived
// fields refreshed and are requeued; the rest stay failed for a human.
func (s *RepairService) RepairPaths(ctx context.Context, contractID string) (*RepairStats, error) {
	broken, err := s.jobs.ListBroken(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("list broken jobs: %w", err)
	}

	stats := &RepairStats{}
	for i := range broken {
		job := &broken[i]
		stats.Examined++

		if job.Attempts >= s.maxAttempts {
			stats.Exhausted++
			continue
		}

		cls := classify.Classify(job.StoragePath)
		if cls.LowConfidence || cls.ContractCode == "" {
			stats.Skipped++
			continue
		}

		contract, err := s.contracts.EnsureContract(ctx, cls.ContractCode, cls.Project)
		if err != nil {
			return stats, fmt.Errorf("ensure contract %s: %w", cls.ContractCode, err)
		}
		if err := s.jobs.UpdateClassification(ctx, job.ID, cls.DocType, contract.ID); err != nil {
			return stats, fmt.Errorf("update classification for %s: %w", job.ID, err)
		}
		if err := s.jobs.ResetToQueued(ctx, job.ID); err != nil {
			return stats, fmt.Errorf("requeue %s: %w", job.ID, err)
		}

		_ = s.logs.Append(ctx, job.ID, domain.StepRepair, "path repair requeued job", map[string]interface{}{
			"doc_type":      string(cls.DocType),
			"contract_code": cls.ContractCode,
		})
		stats.Requeued++
		stats.JobIDs = append(stats.JobIDs, job.ID)
	}

	s.log(ctx).WithFields(logger.Fields{
		"examined": stats.Examined,
		"requeued": stats.Requeued,
	}).Info("Path repair sweep complete")
	return stats, nil
}

// RepairFilenames finds failed jobs whose error matches the given
// signature and whose filename carries characters known to break the
// parsers. Each object is copied to a sanitized key, the old key is
// best-effort deleted, and the job is requeued against the new path.
func (s *RepairService) RepairFilenames(ctx context.Context, errorSignature, contractID string) (*RepairStats, error) {
	failed, err := s.jobs.ListFailedMatching(ctx, errorSignature, contractID)
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}

	stats := &RepairStats{}
	for i := range failed {
		job := &failed[i]
		stats.Examined++

		if job.Attempts >= s.maxAttempts {
			stats.Exhausted++
			continue
		}

		newPath := SanitizePath(job.StoragePath)
		if newPath == job.StoragePath {
			stats.Skipped++
			continue
		}

		if err := s.storage.Rename(ctx, job.StoragePath, newPath); err != nil {
			// Leave the job failed; a broken rename must not lose the
			// only path reference we have.
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldJobID: job.ID,
				"error":           err.Error(),
			}).Warn("Rename failed, job left untouched")
			stats.Skipped++
			continue
		}
		exists, err := s.storage.Exists(ctx, newPath)
		if err != nil || !exists {
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldJobID: job.ID,
			}).Warn("Renamed object not found, job left untouched")
			stats.Skipped++
			continue
		}
		stats.Renamed++

		if err := s.jobs.UpdateStoragePath(ctx, job.ID, newPath); err != nil {
			return stats, fmt.Errorf("update path for %s: %w", job.ID, err)
		}
		if err := s.jobs.ResetToQueued(ctx, job.ID); err != nil {
			return stats, fmt.Errorf("requeue %s: %w", job.ID, err)
		}

		_ = s.logs.Append(ctx, job.ID, domain.StepRepair, "filename repair requeued job", map[string]interface{}{
			"old_path": job.StoragePath,
			"new_path": newPath,
		})
		stats.Requeued++
		stats.JobIDs = append(stats.JobIDs, job.ID)
	}

	s.log(ctx).WithFields(logger.Fields{
		"examined": stats.Examined,
		"renamed":  stats.Renamed,
		"requeued": stats.Requeued,
	}).Info("Filename repair sweep complete")
	return stats, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

var accentedReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U",
	"ñ", "n", "Ñ", "N", "ü", "u", "Ü", "U",
)

// SanitizeFilename rewrites a filename to the safe character set: accents
// folded, spaces collapsed to hyphens, anything else outside
// [a-zA-Z0-9._-] dropped. The extension is preserved.
func SanitizeFilename(name string) string {
	clean := accentedReplacer.Replace(name)
	clean = strings.Join(strings.Fields(clean), "-")
	clean = unsafeChars.ReplaceAllString(clean, "")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		clean = "document.pdf"
	}
	return clean
}

// SanitizePath sanitizes only the filename segment of a storage path; the
// folder convention segments are left untouched because classification
// depends on them.
func SanitizePath(storagePath string) string {
	dir, file := path.Split(storagePath)
	return dir + SanitizeFilename(file)
}
