package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/config"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/extract"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/logger"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/repository"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/service"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/storage"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/validate"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "miner-contract-worker",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	batch := flag.Int("batch", 10, "Maximum jobs to claim per dispatch pass")
	interval := flag.Duration("interval", 30*time.Second, "Delay between dispatch passes; 0 runs a single pass and exits")
	withCleanup := flag.Bool("cleanup", false, "Run a retention sweep after each pass")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"batch":    *batch,
		"interval": interval.String(),
		"cleanup":  *withCleanup,
	}).Info("Starting worker")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	logRepo := repository.NewLogRepository(db)
	contractRepo := repository.NewContractRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize S3-compatible storage (supports R2, S3, MinIO)
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
	if err := objectStorage.EnsureBucket(ctx); err != nil {
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
	cleanupService := service.NewCleanupService(jobRepo, logRepo, appLogger, &cfg.Pipeline)

	// Cancel the dispatch loop on interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		appLogger.Info("Shutting down worker...")
		cancel()
	}()

	runPass := func() {
		stats, err := pipelineService.Dispatch(ctx, *batch)
		if err != nil && ctx.Err() == nil {
			appLogger.WithError(err).Error("Dispatch pass failed")
			return
		}
		if stats.Claimed > 0 {
			appLogger.WithFields(logger.Fields{
				"claimed":   stats.Claimed,
				"succeeded": stats.Succeeded,
				"failed":    stats.Failed,
			}).Info("Dispatch pass complete")
		}
		if *withCleanup {
			if _, err := cleanupService.Run(ctx); err != nil && ctx.Err() == nil {
				appLogger.WithError(err).Error("Retention sweep failed")
			}
		}
	}

	runPass()
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			appLogger.Info("Worker exited")
			return
		case <-ticker.C:
			runPass()
		}
	}
}
