// Package pipeline runs a reconciliation: it reads a tenant roster and a bank
// statement, writes every matched payment into the roster and saves the
// result as a new workbook.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/akuvvet/Automatisierung/internal/classify"
	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/akuvvet/Automatisierung/internal/logger"
	"github.com/google/uuid"
)

// Options configures a Reconciler. Tracker and Archiver are optional.
type Options struct {
	OutputDir      string
	FilenamePrefix string
	Tracker        RunTracker
	Archiver       Archiver
	Now            func() time.Time
}

// Request names the inputs of one run. OutputDir overrides Options.OutputDir.
type Request struct {
	RosterPath    string
	StatementPath string
	OutputDir     string
}

// Result is the outcome of a successful run.
type Result struct {
	RunID      string          `json:"run_id"`
	OutputPath string          `json:"output_path"`
	ArchiveURI string          `json:"archive_uri,omitempty"`
	Stats      domain.RunStats `json:"stats"`
}

// Reconciler runs reconciliations with a fixed classifier and options.
// Runs share no mutable state.
type Reconciler struct {
	classifier *classify.Classifier
	opts       Options
}

// NewReconciler creates a reconciler.
func NewReconciler(classifier *classify.Classifier, opts Options) *Reconciler {
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	if opts.FilenamePrefix == "" {
		opts.FilenamePrefix = DefaultFilenamePrefix
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{classifier: classifier, opts: opts}
}

// OutputPath returns the result path for a run in dir at time now.
func (r *Reconciler) OutputPath(dir string, now time.Time) string {
	if dir == "" {
		dir = r.opts.OutputDir
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", r.opts.FilenamePrefix, now.Format("20060102"), ResultExtension))
}

// Run executes the reconciliation pipeline for req.
func (r *Reconciler) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{
		RunID:         runID,
		RosterPath:    req.RosterPath,
		StatementPath: req.StatementPath,
		OutputPath:    r.OutputPath(req.OutputDir, r.opts.Now()),
	}
	defer state.Close()

	log.Info().
		Str("roster", filepath.Base(req.RosterPath)).
		Str("statement", filepath.Base(req.StatementPath)).
		Msg("Reconciliation started")

	tracked := r.startRun(ctx, state)
	runID = state.RunID

	if err := NewReconciliationPipeline(r.classifier).Execute(ctx, state); err != nil {
		if tracked {
			r.opts.Tracker.MarkRunFailed(ctx, runID, err)
		}
		log.Error().Err(err).Msg("Reconciliation failed")
		return nil, err
	}

	result := &Result{RunID: runID, OutputPath: state.OutputPath, Stats: state.Stats}

	if r.opts.Archiver != nil {
		uri, err := r.opts.Archiver.Archive(ctx, state.OutputPath)
		if err != nil {
			log.Error().Err(err).Msg("Failed to archive result workbook")
		} else {
			result.ArchiveURI = uri
		}
	}

	if tracked {
		if err := r.opts.Tracker.InsertAllocations(ctx, runID, state.Written); err != nil {
			log.Error().Err(err).Msg("Failed to record allocations")
		}
		if err := r.opts.Tracker.MarkRunSucceeded(ctx, runID, state.OutputPath, state.Stats); err != nil {
			log.Error().Err(err).Msg("Failed to mark run as succeeded")
		}
	}

	log.Info().
		Str("output", state.OutputPath).
		Int("transactions", state.Stats.Transactions).
		Int("dropped", state.Stats.Dropped).
		Int("relevant", state.Stats.Relevant).
		Int("written", state.Stats.Written).
		Int("duplicates", state.Stats.Duplicates).
		Int("no_month", state.Stats.NoMonth).
		Int("missing_headers", state.Stats.MissingHeaders).
		Msg("Reconciliation finished")

	return result, nil
}

func (r *Reconciler) startRun(ctx context.Context, state *PipelineState) bool {
	if r.opts.Tracker == nil {
		return false
	}
	id, err := r.opts.Tracker.StartRun(ctx, RunInfo{
		RunID:         state.RunID,
		RosterName:    filepath.Base(state.RosterPath),
		StatementName: filepath.Base(state.StatementPath),
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to start run tracking")
		return false
	}
	state.RunID = id
	return true
}

// Reconcile runs a reconciliation with the built-in rules and returns the
// path of the result workbook in outputDir.
func Reconcile(ctx context.Context, rosterPath, statementPath, outputDir string) (string, error) {
	classifier, err := classify.LoadEmbedded()
	if err != nil {
		return "", err
	}
	res, err := NewReconciler(classifier, Options{OutputDir: outputDir}).Run(ctx, Request{
		RosterPath:    rosterPath,
		StatementPath: statementPath,
	})
	if err != nil {
		return "", err
	}
	return res.OutputPath, nil
}
