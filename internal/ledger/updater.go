// Package ledger writes allocations into the roster: month amount and date
// cells plus the payment history kept as a comment on the date cell.
package ledger

import (
	"fmt"
	"time"

	"github.com/akuvvet/Automatisierung/internal/annotation"
	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Cells is the roster cell access the updater needs.
type Cells interface {
	ReadAmount(cell string) (decimal.Decimal, error)
	ReadDate(cell string) (string, error)
	Annotation(cell string) (string, error)
	WriteAmount(cell string, amount decimal.Decimal) error
	WriteDate(cell string, t time.Time) error
	SetAnnotation(cell, text string) error
}

// Locator resolves the amount and date cells of a month in a roster row.
type Locator interface {
	MonthCells(m time.Month, sheetRow int) (amountCell, dateCell string, ok bool)
}

// Outcome is the result of applying one allocation.
type Outcome int

const (
	Written Outcome = iota
	Duplicate
	MissingHeaders
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Duplicate:
		return "duplicate"
	case MissingHeaders:
		return "missing_headers"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Updater applies allocations idempotently.
type Updater struct {
	cells   Cells
	headers Locator
	log     zerolog.Logger
}

// NewUpdater returns an updater writing through cells.
func NewUpdater(cells Cells, headers Locator, log zerolog.Logger) *Updater {
	return &Updater{cells: cells, headers: headers, log: log}
}

// Apply adds a to its month cell unless the same payment (date and amount
// rounded to cents) is already recorded there.
func (u *Updater) Apply(a domain.Allocation) (Outcome, error) {
	amountCell, dateCell, ok := u.headers.MonthCells(a.Month, a.Row.SheetRow)
	if !ok {
		u.log.Debug().
			Str("tenant", a.Row.Name).
			Str("month", domain.MonthAbbrev(a.Month)).
			Msg("Roster has no header pair for month, skipping")
		return MissingHeaders, nil
	}

	existing, err := u.cells.ReadAmount(amountCell)
	if err != nil {
		return 0, err
	}
	prevDate, err := u.cells.ReadDate(dateCell)
	if err != nil {
		return 0, err
	}
	note, err := u.cells.Annotation(dateCell)
	if err != nil {
		return 0, err
	}

	history := annotation.Parse(note)
	newKey := annotation.NewKey(a.DisplayDate, a.Amount)
	if history.Contains(newKey) {
		return u.duplicate(a, dateCell), nil
	}

	if history.Len() == 0 && existing.IsPositive() && prevDate != "" {
		prev := annotation.Entry{Date: prevDate, Amount: existing.Round(2)}
		if prev.Key() == newKey {
			return u.duplicate(a, dateCell), nil
		}
		history.Add(prev)
	}

	if err := u.cells.WriteAmount(amountCell, existing.Add(a.Amount)); err != nil {
		return 0, err
	}
	if a.Date != nil {
		if err := u.cells.WriteDate(dateCell, *a.Date); err != nil {
			return 0, err
		}
	}

	history.Add(annotation.Entry{Date: a.DisplayDate, Keyword: a.Keyword, Amount: a.Amount.Round(2)})
	if err := u.cells.SetAnnotation(dateCell, history.String()); err != nil {
		return 0, err
	}

	u.log.Debug().
		Str("tenant", a.Row.Name).
		Str("cell", amountCell).
		Str("amount", a.Amount.StringFixed(2)).
		Str("date", a.DisplayDate).
		Msg("Allocation written")
	return Written, nil
}

func (u *Updater) duplicate(a domain.Allocation, cell string) Outcome {
	u.log.Debug().
		Str("tenant", a.Row.Name).
		Str("cell", cell).
		Str("date", a.DisplayDate).
		Str("amount", a.Amount.StringFixed(2)).
		Msg("Allocation already recorded, skipping")
	return Duplicate
}
