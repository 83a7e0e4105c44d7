package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akuvvet/Automatisierung/internal/api/handlers"
	"github.com/akuvvet/Automatisierung/internal/classify"
	"github.com/akuvvet/Automatisierung/internal/config"
	infraBQ "github.com/akuvvet/Automatisierung/internal/infra/bigquery"
	"github.com/akuvvet/Automatisierung/internal/jobs/inmemory"
	"github.com/akuvvet/Automatisierung/internal/logger"
	"github.com/akuvvet/Automatisierung/internal/pipeline"
	"github.com/akuvvet/Automatisierung/internal/scheduler"
	"github.com/akuvvet/Automatisierung/internal/storage"
)

func main() {
	cfg := config.Load()

	// Parse command-line flags
	var (
		port    = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		dataDir = flag.String("data-dir", cfg.DataDir, "Directory for uploads and results (or set DATA_DIR env)")
		rules   = flag.String("rules", cfg.RulesFile, "YAML file replacing the built-in classification rules (or set RULES_FILE env)")
		bucket  = flag.String("bucket", cfg.GCSBucket, "GCS bucket for result archival (or set GCS_BUCKET env)")
	)
	flag.Parse()
	cfg.Port, cfg.DataDir, cfg.RulesFile, cfg.GCSBucket = *port, *dataDir, *rules, *bucket

	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)
	ctx := logger.WithContext(context.Background(), log)

	classifier, err := classify.Load(cfg.RulesFile)
	if err != nil {
		log.Fatal().Err(err).Str("rules", cfg.RulesFile).Msg("Failed to load classification rules")
	}

	for _, dir := range []string{cfg.UploadDir(), cfg.ResultDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create data directory")
		}
	}

	opts := pipeline.Options{
		OutputDir:      cfg.ResultDir(),
		FilenamePrefix: cfg.FilenamePrefix,
	}

	if cfg.GCSBucket != "" {
		gcs, err := storage.NewGCS(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcs.Close()
		opts.Archiver = gcs
		log.Info().Str("bucket", cfg.GCSBucket).Msg("Result archival enabled")
	} else {
		log.Warn().Msg("No GCS bucket configured - results are kept locally only")
	}

	var runsHandler *handlers.RunsHandler
	if cfg.TrackingEnabled() {
		runRepo, err := infraBQ.NewRunRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create run repository")
		}
		defer runRepo.Close()
		opts.Tracker = runRepo
		runsHandler = handlers.NewRunsHandler(runRepo, log)
		log.Info().
			Str("project", cfg.BigQueryProject).
			Str("dataset", cfg.BigQueryDataset).
			Msg("Run tracking enabled")
	}

	reconciler := pipeline.NewReconciler(classifier, opts)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, handlers.NewJobProcessor(reconciler, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.JobWorkers).Msg("Job workers started")

	cleaner := scheduler.NewCleaner(scheduler.Config{
		Schedule:      cfg.CleanupSchedule,
		RetentionDays: cfg.RetentionDays,
		Dirs:          []string{cfg.UploadDir(), cfg.ResultDir()},
	}, log)
	if err := cleaner.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule retention cleanup")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Reconcile:      handlers.NewReconcileHandler(reconciler, cfg.UploadDir(), cfg.ResultDir(), cfg.MaxUploadBytes(), log),
		Jobs:           handlers.NewJobsHandler(jobStore, jobQueue, cfg.UploadDir(), cfg.ResultDir(), cfg.MaxUploadBytes(), log),
		Runs:           runsHandler,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cleaner.Stop(shutdownCtx)

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
