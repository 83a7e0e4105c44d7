package pipeline

import (
	"context"

	"github.com/akuvvet/Automatisierung/internal/domain"
)

// RunTracker records reconciliation runs and their allocations.
// Tracking is best effort: the reconciler logs its errors and carries on.
type RunTracker interface {
	// StartRun inserts a run with status RUNNING and returns its id.
	StartRun(ctx context.Context, run RunInfo) (string, error)

	// MarkRunSucceeded sets status SUCCESS and stores the statistics.
	MarkRunSucceeded(ctx context.Context, runID, outputPath string, stats domain.RunStats) error

	// MarkRunFailed sets status FAILED with the error message.
	MarkRunFailed(ctx context.Context, runID string, runErr error)

	// InsertAllocations stores the allocations written by a run.
	InsertAllocations(ctx context.Context, runID string, allocs []domain.Allocation) error
}

// Archiver copies a result workbook to long-term storage and returns its
// location.
type Archiver interface {
	Archive(ctx context.Context, localPath string) (string, error)
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	RunID         string
	RosterName    string
	StatementName string
}
