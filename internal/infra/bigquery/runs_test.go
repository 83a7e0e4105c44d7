package bigquery

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/shopspring/decimal"
)

func TestTruncateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"short", errors.New("boom"), 4},
		{"long", errors.New(strings.Repeat("x", 2500)), maxErrorLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateError(tt.err); len(got) != tt.want {
				t.Errorf("len(truncateError()) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAllocationRows(t *testing.T) {
	valueDate := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC)
	row := &domain.RosterRow{SheetRow: 4, Name: "Jobcenter Wuppertal", Secondary: "Ayşe Yılmaz", Object: "Whg 2"}
	tx := &domain.Transaction{Payee: "Jobcenter Wuppertal", Memo: "KdU Yilmaz", Label: domain.LabelRent}

	allocs := []domain.Allocation{
		{
			Row:         row,
			Month:       time.March,
			Amount:      decimal.RequireFromString("650.004"),
			Date:        &valueDate,
			DisplayDate: "05.03.2024",
			Keyword:     "KdU",
			Transaction: tx,
		},
		{
			Row:         row,
			Month:       time.April,
			Amount:      decimal.RequireFromString("12"),
			DisplayDate: "April",
			Keyword:     "Miete",
		},
	}

	rows := AllocationRows("run-1", allocs, created)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.RunID != "run-1" || first.AllocationID == "" {
		t.Errorf("ids = %q/%q", first.RunID, first.AllocationID)
	}
	if first.SheetRow != 4 || first.Tenant != "Jobcenter Wuppertal" || first.Secondary != "Ayşe Yılmaz" || first.Object != "Whg 2" {
		t.Errorf("tenant columns = %+v", first)
	}
	if first.Month != 3 || first.MonthColumn != "Mrz" {
		t.Errorf("month = %d/%q, want 3/Mrz", first.Month, first.MonthColumn)
	}
	if got := first.Amount.FloatString(2); got != "650.00" {
		t.Errorf("amount = %s, want 650.00", got)
	}
	if !first.ValueDate.Valid || first.ValueDate.Date.String() != "2024-03-05" {
		t.Errorf("value date = %+v", first.ValueDate)
	}
	if first.Label != string(domain.LabelRent) || first.Payee != "Jobcenter Wuppertal" || first.Memo != "KdU Yilmaz" {
		t.Errorf("transaction columns = %+v", first)
	}
	if !first.CreatedTS.Equal(created) {
		t.Errorf("created = %v", first.CreatedTS)
	}

	second := rows[1]
	if second.ValueDate.Valid {
		t.Error("allocation without date has a value date")
	}
	if second.Label != "" || second.Payee != "" {
		t.Errorf("allocation without transaction has transaction columns: %+v", second)
	}
	if second.AllocationID == first.AllocationID {
		t.Error("allocation ids are not unique")
	}
}

func TestAllocationRowsEmpty(t *testing.T) {
	if rows := AllocationRows("run", nil, time.Now()); len(rows) != 0 {
		t.Errorf("got %d rows", len(rows))
	}
}

func TestStatsParameters(t *testing.T) {
	params := statsParameters(domain.RunStats{Transactions: 5, Written: 3, NoMonth: 1})
	got := make(map[string]any, len(params))
	for _, p := range params {
		got[p.Name] = p.Value
	}
	if len(got) != 9 {
		t.Errorf("got %d parameters, want 9", len(got))
	}
	if got["transactions"] != 5 || got["written"] != 3 || got["no_month"] != 1 || got["dropped"] != 0 {
		t.Errorf("parameters = %v", got)
	}
}
