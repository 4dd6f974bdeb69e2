package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/auditor-agent/internal/analysis"
	"github.com/dvloznov/auditor-agent/internal/api"
	"github.com/dvloznov/auditor-agent/internal/config"
	"github.com/dvloznov/auditor-agent/internal/gcs"
	infraBQ "github.com/dvloznov/auditor-agent/internal/infra/bigquery"
	"github.com/dvloznov/auditor-agent/internal/jobs"
	"github.com/dvloznov/auditor-agent/internal/jobs/inmemory"
	"github.com/dvloznov/auditor-agent/internal/llm"
	"github.com/dvloznov/auditor-agent/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	deps := analysis.Deps{
		ReportBucket: cfg.GCSBucket,
		Defaults:     cfg.ScoringOptions(),
	}

	// Optional Google Cloud integrations
	if cfg.StorageEnabled() {
		storageSvc, err := gcs.NewGCSStorageService(ctx, cfg.MaxUploadBytes)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storageSvc.Close()
		deps.Storage = storageSvc
	} else {
		log.Warn().Msg("No GCS bucket configured - report export and gs:// analyses are disabled")
	}

	if cfg.BigQueryEnabled() {
		runRepo, err := infraBQ.NewBigQueryRunRepository(ctx, cfg.GCPProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create analysis run repository")
		}
		defer runRepo.Close()
		deps.Runs = runRepo
	} else {
		log.Warn().Msg("No BigQuery dataset configured - analysis runs will not be recorded")
	}

	gemini, err := llm.NewGeminiClient(ctx, cfg.LLM())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	if !gemini.Configured() {
		log.Warn().Msg("GEMINI_API_KEY is not set - LLM features are unavailable")
	}

	service := analysis.NewService(deps)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobBuffer, jobStore, inmemory.WithWorkers(cfg.JobWorkers))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.JobWorkers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, service.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	var publisher jobs.Publisher
	if deps.Storage != nil {
		publisher = jobQueue
	}

	handler := api.NewRouter(api.RouterConfig{
		Log:            log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Analyzer:       service,
		Runs:           service,
		Publisher:      publisher,
		JobStore:       jobStore,
		LLM:            gemini,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	waitForShutdown(log, server, jobQueue, cancelWorker)
}

func waitForShutdown(log zerolog.Logger, server *http.Server, queue *inmemory.Queue, cancelWorker context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before cancelling their context
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
