package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/api"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/config"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/extract"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/logger"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/repository"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/service"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/storage"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/validate"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	logRepo := repository.NewLogRepository(db)
	contractRepo := repository.NewContractRepository(db)

	// Initialize storage (supports S3, R2, MinIO)
	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if err := objectStorage.EnsureBucket(context.Background()); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	// Initialize extraction clients
	parserClient := extract.NewParserClient(&extract.ParserConfig{
		BaseURL: cfg.Parser.BaseURL,
		APIKey:  cfg.Parser.APIKey,
		Timeout: cfg.Parser.Timeout,
	})
	llmClient := extract.NewLLMClient(&extract.LLMConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})

	retryPolicy := extract.DefaultRetryPolicy()
	if cfg.Pipeline.MaxRetries > 0 {
		retryPolicy.MaxAttempts = cfg.Pipeline.MaxRetries
	}
	if cfg.Pipeline.RetryBaseDelay > 0 {
		retryPolicy.BaseDelay = cfg.Pipeline.RetryBaseDelay
	}
	extractor := extract.NewClient(parserClient, llmClient, retryPolicy)

	validator, err := validate.New(cfg.Pipeline.Tolerance)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize validator")
	}

	// Initialize services
	upsertService := service.NewUpsertService(contractRepo, logRepo, appLogger)
	pipelineService := service.NewPipelineService(
		jobRepo, logRepo, contractRepo,
		objectStorage, extractor, validator, upsertService,
		appLogger, &cfg.Pipeline,
	)
	repairService := service.NewRepairService(
		jobRepo, logRepo, contractRepo, objectStorage,
		appLogger, cfg.Pipeline.MaxAttempts,
	)
	cleanupService := service.NewCleanupService(jobRepo, logRepo, appLogger, &cfg.Pipeline)

	// Setup router
	router := api.SetupRouter(api.RouterDeps{
		DB:       db,
		Jobs:     jobRepo,
		Logs:     logRepo,
		Pipeline: pipelineService,
		Repair:   repairService,
		Cleanup:  cleanupService,
		Logger:   appLogger,
	}, &cfg.Server)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
