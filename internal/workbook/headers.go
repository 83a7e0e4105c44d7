package workbook

import (
	"strings"
	"time"

	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/xuri/excelize/v2"
)

// HeaderScanRows is how many leading roster rows are searched for headers.
const HeaderScanRows = 5

// HeaderMap resolves roster header names to column numbers.
type HeaderMap struct {
	Row     int // 1-based header row, 0 when no header was found
	columns map[string]int
}

// ScanHeaders returns the header map of the first row among the first
// maxRows rows that has any non-empty cell. When a name repeats, the
// leftmost column wins.
func ScanHeaders(rows [][]string, maxRows int) *HeaderMap {
	hm := &HeaderMap{columns: make(map[string]int)}
	for r := 0; r < len(rows) && r < maxRows; r++ {
		found := false
		for c, v := range rows[r] {
			name := strings.TrimSpace(v)
			if name == "" {
				continue
			}
			found = true
			if _, ok := hm.columns[name]; !ok {
				hm.columns[name] = c + 1
			}
		}
		if found {
			hm.Row = r + 1
			return hm
		}
	}
	return hm
}

// Column returns the 1-based column of header name.
func (h *HeaderMap) Column(name string) (int, bool) {
	col, ok := h.columns[name]
	return col, ok
}

// Len returns the number of distinct headers.
func (h *HeaderMap) Len() int {
	return len(h.columns)
}

// MonthCells returns the amount and date cell names of month m in sheetRow.
// ok is false when either header of the month pair is missing.
func (h *HeaderMap) MonthCells(m time.Month, sheetRow int) (amountCell, dateCell string, ok bool) {
	cols, known := domain.Months[m]
	if !known {
		return "", "", false
	}
	amountCol, ok1 := h.columns[cols.Amount]
	dateCol, ok2 := h.columns[cols.Date]
	if !ok1 || !ok2 {
		return "", "", false
	}
	var err error
	if amountCell, err = excelize.CoordinatesToCellName(amountCol, sheetRow); err != nil {
		return "", "", false
	}
	if dateCell, err = excelize.CoordinatesToCellName(dateCol, sheetRow); err != nil {
		return "", "", false
	}
	return amountCell, dateCell, true
}
