package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// RunRow is a row of reconciliation_runs.
type RunRow struct {
	RunID         string              `bigquery:"run_id"`         // REQUIRED
	RosterName    bigquery.NullString `bigquery:"roster_name"`    // NULLABLE
	StatementName bigquery.NullString `bigquery:"statement_name"` // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string              `bigquery:"status"`        // REQUIRED
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE
	OutputPath   bigquery.NullString `bigquery:"output_path"`   // NULLABLE

	Transactions   bigquery.NullInt64 `bigquery:"transactions"`
	Dropped        bigquery.NullInt64 `bigquery:"dropped"`
	Relevant       bigquery.NullInt64 `bigquery:"relevant"`
	Tenants        bigquery.NullInt64 `bigquery:"tenants"`
	Matched        bigquery.NullInt64 `bigquery:"matched"`
	Written        bigquery.NullInt64 `bigquery:"written"`
	Duplicates     bigquery.NullInt64 `bigquery:"duplicates"`
	NoMonth        bigquery.NullInt64 `bigquery:"no_month"`
	MissingHeaders bigquery.NullInt64 `bigquery:"missing_headers"`
}

// AllocationRow is a row of allocations: one payment written to the roster.
type AllocationRow struct {
	AllocationID string `bigquery:"allocation_id"` // REQUIRED
	RunID        string `bigquery:"run_id"`        // REQUIRED

	SheetRow  int64  `bigquery:"sheet_row"` // REQUIRED
	Tenant    string `bigquery:"tenant"`    // REQUIRED
	Secondary string `bigquery:"secondary"` // NULLABLE
	Object    string `bigquery:"object"`    // NULLABLE

	Month       int64  `bigquery:"month"`        // REQUIRED 1..12
	MonthColumn string `bigquery:"month_column"` // REQUIRED roster header, e.g. "Mrz"

	Amount      *big.Rat          `bigquery:"amount"`       // REQUIRED NUMERIC
	ValueDate   bigquery.NullDate `bigquery:"value_date"`   // NULLABLE
	DisplayDate string            `bigquery:"display_date"` // NULLABLE

	Keyword string `bigquery:"keyword"` // NULLABLE
	Label   string `bigquery:"label"`   // NULLABLE
	Payee   string `bigquery:"payee"`   // NULLABLE
	Memo    string `bigquery:"memo"`    // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func nullDate(t *time.Time) bigquery.NullDate {
	if t == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: civil.DateOf(*t), Valid: true}
}
