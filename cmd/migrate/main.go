package main

import (
	"context"
	"flag"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/akuvvet/Automatisierung/internal/config"
	infraBQ "github.com/akuvvet/Automatisierung/internal/infra/bigquery"
	"github.com/akuvvet/Automatisierung/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	var (
		projectID = flag.String("project", cfg.BigQueryProject, "GCP project ID (or set BIGQUERY_PROJECT env)")
		datasetID = flag.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID (or set BIGQUERY_DATASET env)")
		appliedBy = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dryRun    = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	migrations, err := infraBQ.LoadMigrations(*projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	migrator := infraBQ.NewMigrator(client, *projectID, *datasetID, *appliedBy)

	if err := migrator.EnsureTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	applied, err := migrator.Applied(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	count, err := applyPending(ctx, migrator, infraBQ.Pending(migrations, applied), *dryRun, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	switch {
	case *dryRun:
		log.Info().Int("pending", count).Msg("Dry run finished")
	case count == 0:
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	default:
		log.Info().Int("applied", count).Msg("Successfully applied migrations")
	}
}

// migrationApplier executes and records one migration.
type migrationApplier interface {
	Apply(ctx context.Context, migration infraBQ.Migration) error
}

// applyPending applies migrations in order and stops at the first failure.
// In dry-run mode nothing is applied and the pending count is returned.
func applyPending(ctx context.Context, applier migrationApplier, pending []infraBQ.Migration, dryRun bool, log zerolog.Logger) (int, error) {
	count := 0
	for _, m := range pending {
		name := fmt.Sprintf("%04d_%s", m.Version, m.Name)
		if dryRun {
			log.Info().Str("migration", name).Msg("[PENDING]")
			count++
			continue
		}

		log.Info().Str("migration", name).Msg("[RUN]")
		if err := applier.Apply(ctx, m); err != nil {
			return count, fmt.Errorf("migration %s: %w", name, err)
		}
		log.Info().Str("migration", name).Msg("[OK]")
		count++
	}
	return count, nil
}
