package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akuvvet/Automatisierung/internal/classify"
	"github.com/akuvvet/Automatisierung/internal/config"
	"github.com/akuvvet/Automatisierung/internal/logger"
	"github.com/akuvvet/Automatisierung/internal/pipeline"
	"github.com/akuvvet/Automatisierung/internal/storage"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "reconcile":
		runReconcile(cfg, log)
	case "upload":
		runUpload(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Mieten-Abgleich CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  reconcile  Write the payments of a bank statement into a tenant roster")
	fmt.Println("  upload     Upload a file to GCS")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runReconcile(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	rosterPath := fs.String("roster", "", "Roster workbook (.xlsx), local path or gs:// URI")
	statementPath := fs.String("statement", "", "Bank statement (.xlsx, .xls, .csv), local path or gs:// URI")
	outDir := fs.String("out", cfg.ResultDir(), "Directory for the result workbook")
	rulesFile := fs.String("rules", cfg.RulesFile, "YAML file replacing the built-in classification rules")
	prefix := fs.String("prefix", cfg.FilenamePrefix, "Result file name prefix")
	bucket := fs.String("archive-bucket", cfg.GCSBucket, "GCS bucket to archive the result to (optional)")
	fs.Parse(os.Args[2:])

	if *rosterPath == "" || *statementPath == "" {
		log.Fatal().Msg("Usage: cli reconcile -roster PATH -statement PATH [-out DIR] [-rules FILE]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	classifier, err := classify.Load(*rulesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load classification rules")
	}

	opts := pipeline.Options{OutputDir: *outDir, FilenamePrefix: *prefix}

	var gcs *storage.GCS
	if storage.IsURI(*rosterPath) || storage.IsURI(*statementPath) || *bucket != "" {
		gcs, err = storage.NewGCS(ctx, *bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcs.Close()
		if *bucket != "" {
			opts.Archiver = gcs
		}
	}

	tmpDir, err := os.MkdirTemp("", "mieten-abgleich-")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	var fetcher storage.Fetcher
	if gcs != nil {
		fetcher = gcs
	}
	roster, err := storage.Materialize(ctx, fetcher, *rosterPath, tmpDir)
	if err != nil {
		log.Fatal().Err(err).Str("roster", *rosterPath).Msg("Failed to fetch roster")
	}
	statement, err := storage.Materialize(ctx, fetcher, *statementPath, tmpDir)
	if err != nil {
		log.Fatal().Err(err).Str("statement", *statementPath).Msg("Failed to fetch statement")
	}

	result, err := pipeline.NewReconciler(classifier, opts).Run(ctx, pipeline.Request{
		RosterPath:    roster,
		StatementPath: statement,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	fmt.Printf("Result written to %s\n", result.OutputPath)
	if result.ArchiveURI != "" {
		fmt.Printf("Archived to %s\n", result.ArchiveURI)
	}
	stats, _ := json.MarshalIndent(result.Stats, "", "  ")
	fmt.Println(string(stats))
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH [-object NAME]")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	gcs, err := storage.NewGCS(ctx, *bucketName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer gcs.Close()

	if err := gcs.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}
