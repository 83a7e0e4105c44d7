// Package bigquery records reconciliation runs and the allocations they wrote
// in BigQuery.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/akuvvet/Automatisierung/internal/logger"
	"github.com/akuvvet/Automatisierung/internal/pipeline"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const (
	runsTable        = "reconciliation_runs"
	allocationsTable = "allocations"

	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"

	maxErrorLen = 2000
)

// RunRepository implements pipeline.RunTracker on BigQuery.
type RunRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	now       func() time.Time
}

var _ pipeline.RunTracker = (*RunRepository)(nil)

// NewRunRepository creates a repository with its own BigQuery client.
func NewRunRepository(ctx context.Context, projectID, datasetID string) (*RunRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRunRepository: creating client: %w", err)
	}
	return NewRunRepositoryWithClient(client, projectID, datasetID), nil
}

// NewRunRepositoryWithClient creates a repository on a shared client.
func NewRunRepositoryWithClient(client *bigquery.Client, projectID, datasetID string) *RunRepository {
	return &RunRepository{client: client, projectID: projectID, datasetID: datasetID, now: time.Now}
}

// Close closes the BigQuery client.
func (r *RunRepository) Close() error {
	return r.client.Close()
}

func (r *RunRepository) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, name)
}

// StartRun inserts a row with status RUNNING and returns the run id. The
// id from run is used when set.
func (r *RunRepository) StartRun(ctx context.Context, run pipeline.RunInfo) (string, error) {
	runID := run.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			roster_name,
			statement_name,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@roster_name,
			@statement_name,
			@started_ts,
			@status
		)
	`, r.table(runsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "roster_name", Value: run.RosterName},
		{Name: "statement_name", Value: run.StatementName},
		{Name: "started_ts", Value: r.now()},
		{Name: "status", Value: StatusRunning},
	}

	if err := runQuery(ctx, q); err != nil {
		return "", fmt.Errorf("StartRun: %w", err)
	}
	return runID, nil
}

// MarkRunSucceeded sets status SUCCESS, finished_ts and the run statistics.
func (r *RunRepository) MarkRunSucceeded(ctx context.Context, runID, outputPath string, stats domain.RunStats) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    output_path = @output_path,
		    transactions = @transactions,
		    dropped = @dropped,
		    relevant = @relevant,
		    tenants = @tenants,
		    matched = @matched,
		    written = @written,
		    duplicates = @duplicates,
		    no_month = @no_month,
		    missing_headers = @missing_headers
		WHERE run_id = @run_id
	`, r.table(runsTable)))

	q.Parameters = append([]bigquery.QueryParameter{
		{Name: "status", Value: StatusSuccess},
		{Name: "finished_ts", Value: r.now()},
		{Name: "output_path", Value: outputPath},
		{Name: "run_id", Value: runID},
	}, statsParameters(stats)...)

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

// MarkRunFailed sets status FAILED, finished_ts and error_message. Errors
// are logged, not returned.
func (r *RunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, r.table(runsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusFailed},
		{Name: "finished_ts", Value: r.now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: updating run")
	}
}

// InsertAllocations streams the written allocations of a run.
func (r *RunRepository) InsertAllocations(ctx context.Context, runID string, allocs []domain.Allocation) error {
	rows := AllocationRows(runID, allocs, r.now())
	if len(rows) == 0 {
		return nil
	}

	inserter := r.client.DatasetInProject(r.projectID, r.datasetID).Table(allocationsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertAllocations: inserting rows: %w", err)
	}
	return nil
}

// AllocationRows maps allocations to table rows.
func AllocationRows(runID string, allocs []domain.Allocation, created time.Time) []*AllocationRow {
	rows := make([]*AllocationRow, 0, len(allocs))
	for _, a := range allocs {
		row := &AllocationRow{
			AllocationID: uuid.NewString(),
			RunID:        runID,
			Month:        int64(a.Month),
			MonthColumn:  domain.MonthAbbrev(a.Month),
			Amount:       a.Amount.Round(2).Rat(),
			ValueDate:    nullDate(a.Date),
			DisplayDate:  a.DisplayDate,
			Keyword:      a.Keyword,
			CreatedTS:    created,
		}
		if a.Row != nil {
			row.SheetRow = int64(a.Row.SheetRow)
			row.Tenant = a.Row.Name
			row.Secondary = a.Row.Secondary
			row.Object = a.Row.Object
		}
		if tx := a.Transaction; tx != nil {
			row.Label = string(tx.Label)
			row.Payee = tx.Payee
			row.Memo = tx.Memo
		}
		rows = append(rows, row)
	}
	return rows
}

func statsParameters(s domain.RunStats) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "transactions", Value: s.Transactions},
		{Name: "dropped", Value: s.Dropped},
		{Name: "relevant", Value: s.Relevant},
		{Name: "tenants", Value: s.Tenants},
		{Name: "matched", Value: s.Matched},
		{Name: "written", Value: s.Written},
		{Name: "duplicates", Value: s.Duplicates},
		{Name: "no_month", Value: s.NoMonth},
		{Name: "missing_headers", Value: s.MissingHeaders},
	}
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]*RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, r.table(runsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: limit}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("RecentRuns: reading query: %w", err)
	}

	var runs []*RunRow
	for {
		var row RunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("RecentRuns: iterating results: %w", err)
		}
		runs = append(runs, &row)
	}
	return runs, nil
}
