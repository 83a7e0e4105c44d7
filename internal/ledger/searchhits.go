package ledger

import (
	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/akuvvet/Automatisierung/internal/match"
	"github.com/akuvvet/Automatisierung/internal/workbook"
)

// SearchHitsSheet is rebuilt on every run.
const SearchHitsSheet = "suchtreffer"

// SheetWriter replaces a whole sheet.
type SheetWriter interface {
	ReplaceSheet(name string, columns []workbook.Column, rows [][]any) error
}

var searchHitColumns = []workbook.Column{
	{Header: "Datum", Format: workbook.FormatDate},
	{Header: "Name"},
	{Header: "Suchwort"},
	{Header: "Betrag", Format: workbook.FormatAmount},
	{Header: "Zielmonat"},
}

// SearchHitRows renders relevant transactions in the order given, which is
// expected to be match.Sort order. Zielmonat holds the roster abbreviation
// of the resolved month, empty when none resolves.
func SearchHitRows(txs []*domain.Transaction) [][]any {
	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		var dateValue any = tx.RawDate
		if tx.ValueDate != nil {
			dateValue = *tx.ValueDate
		}
		target := ""
		if m, ok := match.ResolveMonth(tx); ok {
			target = domain.MonthAbbrev(m)
		}
		rows = append(rows, []any{dateValue, tx.Payee, tx.Keyword, tx.Amount, target})
	}
	return rows
}

// WriteSearchHits replaces the search hits sheet with one row per
// transaction.
func WriteSearchHits(w SheetWriter, txs []*domain.Transaction) error {
	return w.ReplaceSheet(SearchHitsSheet, searchHitColumns, SearchHitRows(txs))
}
