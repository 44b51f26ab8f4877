package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/api/handler"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/api/middleware"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/config"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/logger"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/repository"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/service"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	DB       *gorm.DB
	Jobs     *repository.JobRepository
	Logs     *repository.LogRepository
	Pipeline *service.PipelineService
	Repair   *service.RepairService
	Cleanup  *service.CleanupService
	Logger   *logger.Logger
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(deps RouterDeps, cfg *config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(deps.DB)
	jobHandler := handler.NewJobHandler(deps.Pipeline, deps.Jobs, deps.Logs)
	adminHandler := handler.NewAdminHandler(deps.Repair, deps.Cleanup)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/jobs", jobHandler.Enqueue)
		v1.POST("/jobs/dispatch", jobHandler.Dispatch)
		v1.GET("/jobs", jobHandler.List)
		v1.GET("/jobs/stuck", jobHandler.Stuck)
		v1.GET("/jobs/:id", jobHandler.Get)
		v1.GET("/jobs/:id/logs", jobHandler.Logs)

		v1.POST("/repair/paths", adminHandler.RepairPaths)
		v1.POST("/repair/filenames", adminHandler.RepairFilenames)
		v1.POST("/cleanup", adminHandler.Cleanup)
	}

	return r
}
