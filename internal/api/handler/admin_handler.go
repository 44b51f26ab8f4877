package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/api/middleware"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/service"
)

// AdminHandler exposes the repair and retention operations.
type AdminHandler struct {
	repair  *service.RepairService
	cleanup *service.CleanupService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(repair *service.RepairService, cleanup *service.CleanupService) *AdminHandler {
	return &AdminHandler{repair: repair, cleanup: cleanup}
}

// RepairPathsRequest is the body of POST /api/v1/repair/paths.
type RepairPathsRequest struct {
	ContractID string `json:"contract_id"`
}

// RepairPaths re-examines failed jobs with broken classification and
// requeues the ones whose paths now resolve.
func (h *AdminHandler) RepairPaths(c *gin.Context) {
	var req RepairPathsRequest
	_ = c.ShouldBindJSON(&req)

	stats, err := h.repair.RepairPaths(c.Request.Context(), req.ContractID)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Path repair failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "path repair failed", "stats": stats})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RepairFilenamesRequest is the body of POST /api/v1/repair/filenames.
type RepairFilenamesRequest struct {
	ErrorSignature string `json:"error_signature"`
	ContractID     string `json:"contract_id"`
}

// RepairFilenames renames stored objects whose filenames broke an
// upstream service and requeues the affected jobs.
func (h *AdminHandler) RepairFilenames(c *gin.Context) {
	var req RepairFilenamesRequest
	_ = c.ShouldBindJSON(&req)

	stats, err := h.repair.RepairFilenames(c.Request.Context(), req.ErrorSignature, req.ContractID)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Filename repair failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "filename repair failed", "stats": stats})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Cleanup runs one retention sweep over terminal jobs and aged logs.
func (h *AdminHandler) Cleanup(c *gin.Context) {
	stats, err := h.cleanup.Run(c.Request.Context())
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Cleanup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
