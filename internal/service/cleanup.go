package service

import (
	"context"
	"fmt"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/config"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/logger"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/repository"
)

// CleanupService removes aged rows. Terminal jobs go after the short job
// retention window; logs are kept much longer so failure trails outlive
// the jobs that produced them. Queued and working jobs are never touched.
type CleanupService struct {
	jobs   *repository.JobRepository
	logs   *repository.LogRepository
	logger *logger.Logger
	cfg    *config.PipelineConfig
}

// NewCleanupService creates a new CleanupService.
func NewCleanupService(jobs *repository.JobRepository, logs *repository.LogRepository, log *logger.Logger, cfg *config.PipelineConfig) *CleanupService {
	return &CleanupService{jobs: jobs, logs: logs, logger: log, cfg: cfg}
}

// CleanupStats reports what one sweep removed.
type CleanupStats struct {
	JobsRemoved int64 `json:"jobs_removed"`
	LogsRemoved int64 `json:"logs_removed"`
}

// Run performs one retention sweep.
func (s *CleanupService) Run(ctx context.Context) (*CleanupStats, error) {
	stats := &CleanupStats{}

	removed, err := s.jobs.DeleteTerminalOlderThan(ctx, s.cfg.JobRetention)
	if err != nil {
		return nil, fmt.Errorf("delete aged jobs: %w", err)
	}
	stats.JobsRemoved = removed

	removed, err = s.logs.DeleteOlderThan(ctx, s.cfg.LogRetention)
	if err != nil {
		return nil, fmt.Errorf("delete aged logs: %w", err)
	}
	stats.LogsRemoved = removed

	s.logger.WithFields(logger.Fields{
		"jobs_removed": stats.JobsRemoved,
		"logs_removed": stats.LogsRemoved,
	}).Info("Retention sweep complete")
	return stats, nil
}
