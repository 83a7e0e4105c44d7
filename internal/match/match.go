// Package match assigns relevant transactions to roster rows and months.
package match

import (
	"sort"
	"strings"
	"time"

	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/akuvvet/Automatisierung/internal/normalize"
)

// Sort orders transactions by payee, then value date (undated last), then
// amount. The sort is stable so statement order breaks remaining ties.
func Sort(txs []*domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.Payee != b.Payee {
			return a.Payee < b.Payee
		}
		switch {
		case a.ValueDate != nil && b.ValueDate != nil:
			if !a.ValueDate.Equal(*b.ValueDate) {
				return a.ValueDate.Before(*b.ValueDate)
			}
		case a.ValueDate != nil:
			return true
		case b.ValueDate != nil:
			return false
		}
		return a.Amount.LessThan(b.Amount)
	})
}

// Matcher finds the transactions belonging to a roster row.
type Matcher struct {
	txs      []*domain.Transaction
	byPayee  map[string][]*domain.Transaction
	haystack []string
}

// New indexes txs, which should already be sorted with Sort.
func New(txs []*domain.Transaction) *Matcher {
	m := &Matcher{
		txs:      txs,
		byPayee:  make(map[string][]*domain.Transaction),
		haystack: make([]string, len(txs)),
	}
	for i, tx := range txs {
		m.byPayee[tx.PayeeKey] = append(m.byPayee[tx.PayeeKey], tx)
		m.haystack[i] = normalize.NormalizeName(tx.Payee) + "|" + normalize.NormalizeName(tx.ClassificationText())
	}
	return m
}

// Candidates returns the transactions for row in sorted order. Agency rows
// match every transaction whose payee or text contains the secondary
// occupant's normalized name, compared with word spaces kept; other rows need
// an exact payee match.
func (m *Matcher) Candidates(row *domain.RosterRow) []*domain.Transaction {
	if row.Agency && row.SecondaryKey != "" {
		var out []*domain.Transaction
		for i, tx := range m.txs {
			if strings.Contains(m.haystack[i], row.SecondaryKey) {
				out = append(out, tx)
			}
		}
		return out
	}
	return m.byPayee[row.Key]
}

// ResolveMonth picks the target month of tx: an explicit month name in the
// memo wins, then the value date, then an ISO date inside the raw date text.
// ok is false when none applies.
func ResolveMonth(tx *domain.Transaction) (time.Month, bool) {
	if tx.MonthOverride != 0 {
		return tx.MonthOverride, true
	}
	if tx.ValueDate != nil {
		return tx.ValueDate.Month(), true
	}
	if d, ok := normalize.RecoverISODate(tx.RawDate); ok {
		return d.Month(), true
	}
	return 0, false
}

// Allocations turns the candidates of row into allocations. Transactions
// without a resolvable month are left out and counted.
func (m *Matcher) Allocations(row *domain.RosterRow) ([]domain.Allocation, int) {
	var (
		out     []domain.Allocation
		noMonth int
	)
	for _, tx := range m.Candidates(row) {
		month, ok := ResolveMonth(tx)
		if !ok {
			noMonth++
			continue
		}
		a := domain.Allocation{
			Row:         row,
			Month:       month,
			Amount:      tx.Amount,
			Keyword:     tx.Keyword,
			Transaction: tx,
		}
		if d := allocationDate(tx); d != nil {
			a.Date = d
			a.DisplayDate = normalize.FormatDate(*d)
		} else {
			a.DisplayDate = tx.RawDate
		}
		if a.Keyword == "" {
			a.Keyword = tx.Label.DisplayName()
		}
		out = append(out, a)
	}
	return out, noMonth
}

func allocationDate(tx *domain.Transaction) *time.Time {
	if tx.ValueDate != nil {
		return tx.ValueDate
	}
	if d, ok := normalize.RecoverISODate(tx.RawDate); ok {
		return &d
	}
	return nil
}
