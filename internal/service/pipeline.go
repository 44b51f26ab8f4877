package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/classify"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/config"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/extract"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/logger"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/repository"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/storage"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/validate"
)

// PipelineService runs the ingestion pipeline: claim a queued job, derive
// its type from the storage path, fetch and extract the document, validate
// the result, and upsert the normalized records. One job either reaches
// done with records written, or failed with its error preserved; partial
// writes are acceptable because every write is an idempotent upsert.
type PipelineService struct {
	jobs      *repository.JobRepository
	logs      *repository.LogRepository
	contracts *repository.ContractRepository
	storage   storage.ObjectStorage
	extractor *extract.Client
	validator *validate.Validator
	upserter  *UpsertService
	logger    *logger.Logger
	cfg       *config.PipelineConfig
}

// NewPipelineService creates a new PipelineService.
func NewPipelineService(
	jobs *repository.JobRepository,
	logs *repository.LogRepository,
	contracts *repository.ContractRepository,
	objectStorage storage.ObjectStorage,
	extractor *extract.Client,
	validator *validate.Validator,
	upserter *UpsertService,
	log *logger.Logger,
	cfg *config.PipelineConfig,
) *PipelineService {
	return &PipelineService{
		jobs:      jobs,
		logs:      logs,
		contracts: contracts,
		storage:   objectStorage,
		extractor: extractor,
		validator: validator,
		upserter:  upserter,
		logger:    log,
		cfg:       cfg,
	}
}

// log returns a logger from context if available, otherwise the default one.
func (s *PipelineService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Enqueue registers a stored document for ingestion. Classification runs
// eagerly so listings can group jobs by contract before any worker picks
// them up; processing re-derives it in case the path was repaired since.
// The contract row is resolved here too, so a job carries the contract
// row ID from enqueue through done and one filter value covers its whole
// lifecycle. A duplicate path or content hash returns the existing job,
// not an error.
func (s *PipelineService) Enqueue(ctx context.Context, storagePath, contentHash, etag string) (*domain.IngestJob, bool, error) {
	cls := classify.Classify(storagePath)

	var contractID string
	if cls.ContractCode != "" {
		contract, err := s.contracts.EnsureContract(ctx, cls.ContractCode, cls.Project)
		if err != nil {
			return nil, false, fmt.Errorf("ensure contract %s: %w", cls.ContractCode, err)
		}
		contractID = contract.ID
	}

	job := &domain.IngestJob{
		StoragePath: storagePath,
		Project:     cls.Project,
		DocType:     cls.DocType,
		ContractID:  contractID,
		ContentHash: contentHash,
		ETag:        etag,
	}

	stored, created, err := s.jobs.Enqueue(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if created {
		_ = s.logs.Append(ctx, stored.ID, domain.StepEnqueued, "job enqueued", map[string]interface{}{
			"storage_path": storagePath,
			"doc_type":     string(cls.DocType),
		})
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldJobID:   stored.ID,
			logger.FieldDocType: string(cls.DocType),
		}).Info("Job enqueued")
	} else {
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldJobID: stored.ID,
		}).Debug("Duplicate enqueue, returning existing job")
	}
	return stored, created, nil
}

// DispatchStats summarizes one dispatch run.
type DispatchStats struct {
	Claimed   int `json:"claimed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Dispatch claims and processes up to max queued jobs sequentially.
// Processing errors mark the job failed and continue with the next one;
// only infrastructure errors (claim queries failing) abort the run.
func (s *PipelineService) Dispatch(ctx context.Context, max int) (*DispatchStats, error) {
	if max <= 0 {
		max = 10
	}
	stats := &DispatchStats{}
	for i := 0; i < max; i++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		job, err := s.jobs.ClaimNext(ctx)
		if err != nil {
			return stats, fmt.Errorf("claim next job: %w", err)
		}
		if job == nil {
			break
		}
		stats.Claimed++

		if err := s.Process(ctx, job); err != nil {
			stats.Failed++
		} else {
			stats.Succeeded++
		}
	}
	return stats, nil
}

// ErrJobNotDispatchable marks a targeted dispatch whose job does not
// exist or is no longer queued.
var ErrJobNotDispatchable = errors.New("job is not in queued state")

// DispatchJob claims and processes one specific job. A job that does not
// exist or is no longer in queued state returns ErrJobNotDispatchable;
// the caller sees exactly why its target did not run.
func (s *PipelineService) DispatchJob(ctx context.Context, jobID string) (*DispatchStats, error) {
	stats := &DispatchStats{}
	job, err := s.jobs.Claim(ctx, jobID)
	if err != nil {
		return stats, fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if job == nil {
		return stats, fmt.Errorf("job %s: %w", jobID, ErrJobNotDispatchable)
	}
	stats.Claimed = 1

	if err := s.Process(ctx, job); err != nil {
		stats.Failed = 1
	} else {
		stats.Succeeded = 1
	}
	return stats, nil
}

// Process runs one claimed job through the pipeline. The job must already
// be in working state. Returns the processing error after recording it on
// the job; callers use it only for counting.
func (s *PipelineService) Process(ctx context.Context, job *domain.IngestJob) error {
	start := time.Now()
	ctx = logger.SetJobID(ctx, job.ID)
	log := s.log(ctx)

	log.WithFields(logger.Fields{
		logger.FieldStep: domain.StepStart,
		"storage_path":   job.StoragePath,
		"attempt":        job.Attempts,
	}).Info("Processing job")
	_ = s.logs.Append(ctx, job.ID, domain.StepStart, "processing started", map[string]interface{}{
		"attempt": job.Attempts,
	})

	payload, err := s.run(ctx, job)
	if err != nil {
		_ = s.logs.Append(ctx, job.ID, domain.StepError, err.Error(), nil)
		if markErr := s.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			log.WithField("error", markErr.Error()).Error("Failed to mark job failed")
		}
		log.WithFields(logger.Fields{
			logger.FieldStep:       domain.StepError,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			"error":                err.Error(),
		}).Error("Job failed")
		return err
	}

	if err := s.jobs.MarkDone(ctx, job.ID); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	_ = s.logs.Append(ctx, job.ID, domain.StepComplete, "processing complete", map[string]interface{}{
		"review_required": payload.ReviewRequired,
		"warnings":        len(payload.Warnings),
	})
	log.WithFields(logger.Fields{
		logger.FieldStep:       domain.StepComplete,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"review_required":      payload.ReviewRequired,
	}).Info("Job complete")
	return nil
}

// run executes the pipeline stages and returns the validated payload.
func (s *PipelineService) run(ctx context.Context, job *domain.IngestJob) (*domain.ExtractedPayload, error) {
	// Classification. Re-derived from the current path so a path repair
	// between enqueue and claim takes effect.
	cls := classify.Classify(job.StoragePath)
	_ = s.logs.Append(ctx, job.ID, domain.StepClassify, "classified", map[string]interface{}{
		"doc_type":       string(cls.DocType),
		"contract_code":  cls.ContractCode,
		"low_confidence": cls.LowConfidence,
	})

	var contractID string
	if cls.ContractCode != "" {
		contract, err := s.contracts.EnsureContract(ctx, cls.ContractCode, cls.Project)
		if err != nil {
			return nil, fmt.Errorf("ensure contract %s: %w", cls.ContractCode, err)
		}
		contractID = contract.ID
		ctx = logger.SetContractID(ctx, contractID)
	}
	if err := s.jobs.UpdateClassification(ctx, job.ID, cls.DocType, contractID); err != nil {
		return nil, fmt.Errorf("update classification: %w", err)
	}

	// Fetch the document bytes.
	reader, err := s.storage.Download(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", job.StoragePath, err)
	}
	document, err := io.ReadAll(reader)
	closeErr := reader.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", job.StoragePath, err)
	}
	if closeErr != nil {
		s.log(ctx).WithField("error", closeErr.Error()).Warn("Close after download failed")
	}

	// External extraction: parse, then model for known types.
	result, err := s.extractor.Extract(ctx, document, cls.Filename, cls.DocType)
	if err != nil {
		var upstream *extract.UpstreamError
		if errors.As(err, &upstream) {
			return nil, fmt.Errorf("%s: %w", upstream.Service, err)
		}
		return nil, fmt.Errorf("extract: %w", err)
	}
	_ = s.logs.Append(ctx, job.ID, domain.StepExtract, "extraction complete", map[string]interface{}{
		"pages": result.Pages,
	})

	// Validation never fails; problems become warnings and review flags.
	payload := s.validator.Validate(validate.Input{
		Raw:               result.Raw,
		DocType:           cls.DocType,
		SourceFile:        cls.Filename,
		Pages:             result.Pages,
		LowConfidenceType: cls.LowConfidence,
	})
	_ = s.logs.Append(ctx, job.ID, domain.StepValidate, "validation complete", map[string]interface{}{
		"warnings":        payload.Warnings,
		"review_required": payload.ReviewRequired,
		"confidence":      payload.Confidence,
	})

	if err := s.contracts.RecordExtraction(ctx, job.ID, payload, result.ModelOut); err != nil {
		return nil, fmt.Errorf("record extraction: %w", err)
	}

	if err := s.upserter.Apply(ctx, job, cls, payload); err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	return payload, nil
}

// ListStuck returns working jobs older than the staleness threshold.
// They are reported for operator attention, never auto-failed: the
// upstream call may still be in flight.
func (s *PipelineService) ListStuck(ctx context.Context) ([]domain.IngestJob, error) {
	return s.jobs.ListStale(ctx, s.cfg.StaleAfter)
}
