package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/api/middleware"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/repository"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/service"
)

// JobHandler exposes the ingestion queue over HTTP: enqueue, dispatch,
// and the status and log views the operations UI polls.
type JobHandler struct {
	pipeline *service.PipelineService
	jobs     *repository.JobRepository
	logs     *repository.LogRepository
}

// NewJobHandler creates a new job handler.
func NewJobHandler(pipeline *service.PipelineService, jobs *repository.JobRepository, logs *repository.LogRepository) *JobHandler {
	return &JobHandler{pipeline: pipeline, jobs: jobs, logs: logs}
}

// EnqueueRequest is the body of POST /api/v1/jobs.
type EnqueueRequest struct {
	StoragePath string `json:"storage_path" binding:"required"`
	ContentHash string `json:"content_hash"`
	ETag        string `json:"etag"`
}

// Enqueue registers a stored document for ingestion.
// A repeated path returns the existing job with 200 instead of 201.
func (h *JobHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage_path is required"})
		return
	}

	job, created, err := h.pipeline.Enqueue(c.Request.Context(), req.StoragePath, req.ContentHash, req.ETag)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Enqueue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"job": job, "created": created})
}

// DispatchRequest is the body of POST /api/v1/jobs/dispatch. When job_id
// is set, exactly that job is dispatched; otherwise up to max queued jobs
// run in enqueue order.
type DispatchRequest struct {
	JobID string `json:"job_id"`
	Max   int    `json:"max"`
}

// Dispatch claims and processes queued jobs. The call is synchronous; the
// response reports how many jobs were claimed and how each batch ended.
func (h *JobHandler) Dispatch(c *gin.Context) {
	var req DispatchRequest
	// An empty body means default batch size.
	_ = c.ShouldBindJSON(&req)

	if req.JobID != "" {
		stats, err := h.pipeline.DispatchJob(c.Request.Context(), req.JobID)
		if errors.Is(err, service.ErrJobNotDispatchable) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			middleware.GetLogger(c).WithError(err).Error("Dispatch failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed", "stats": stats})
			return
		}
		c.JSON(http.StatusOK, stats)
		return
	}

	stats, err := h.pipeline.Dispatch(c.Request.Context(), req.Max)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Dispatch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed", "stats": stats})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// List returns jobs filtered by contract_id and/or status, newest first.
func (h *JobHandler) List(c *gin.Context) {
	status := domain.JobStatus(c.Query("status"))
	if status != "" && !status.Terminal() && status != domain.JobStatusQueued && status != domain.JobStatusWorking {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = v
	}

	jobs, err := h.jobs.List(c.Request.Context(), c.Query("contract_id"), status, limit)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("List jobs failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// Get returns one job by ID.
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Get job failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Logs returns a job's processing trail, oldest first.
func (h *JobHandler) Logs(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.jobs.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Get job failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	entries, err := h.logs.ListByJob(c.Request.Context(), id)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("List logs failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries, "count": len(entries)})
}

// Stuck returns working jobs older than the staleness threshold. They are
// reported for operator attention; nothing is modified.
func (h *JobHandler) Stuck(c *gin.Context) {
	jobs, err := h.pipeline.ListStuck(c.Request.Context())
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("List stuck jobs failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stuck jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}
