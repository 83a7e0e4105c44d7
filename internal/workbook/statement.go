package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/akuvvet/Automatisierung/internal/normalize"
	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Statement column headers.
const (
	ColValueDate = "Wertstellung"
	ColPayee     = "Empfänger/Auftraggeber"
	ColMemo      = "Verwendungszweck"
	ColCategory  = "Kategorie"
	ColObject    = "Kontoname"
	ColAmount    = "Betrag"
)

// RequiredColumns must all be present in a statement.
var RequiredColumns = []string{ColValueDate, ColPayee, ColMemo, ColObject, ColAmount}

// Table is a statement sheet as text: the first non-empty row is the header.
type Table struct {
	Header    []string
	Rows      [][]string
	HeaderRow int // 1-based
	columns   map[string]int
}

// ReadStatement reads the first sheet of a statement file. The format is
// chosen by extension: .xlsx/.xlsm, .xls or .csv/.txt.
func ReadStatement(path string) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	case ".xls":
		rows, err = readXLS(path)
	case ".csv", ".txt":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return NewTable(rows)
}

// NewTable builds a Table from raw rows, skipping leading empty rows.
func NewTable(rows [][]string) (*Table, error) {
	for i, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		t := &Table{
			Header:    row,
			Rows:      rows[i+1:],
			HeaderRow: i + 1,
			columns:   make(map[string]int, len(row)),
		}
		for c, name := range row {
			name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
			if _, ok := t.columns[name]; !ok && name != "" {
				t.columns[name] = c
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("statement has no header row")
}

// Has reports whether the header contains column name.
func (t *Table) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Missing returns the required columns absent from the header, in
// RequiredColumns order.
func (t *Table) Missing() []string {
	var missing []string
	for _, c := range RequiredColumns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Value returns column name of data row i, "" when absent.
func (t *Table) Value(i int, name string) string {
	c, ok := t.columns[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(cellAt(t.Rows[i], c))
}

// Transactions converts the data rows. Rows whose amount cannot be parsed are
// dropped and counted; empty rows are ignored. A *MissingColumnsError is
// returned when a required column is absent.
func (t *Table) Transactions() ([]*domain.Transaction, int, error) {
	if missing := t.Missing(); len(missing) > 0 {
		return nil, 0, &MissingColumnsError{Columns: missing}
	}

	var (
		txs     []*domain.Transaction
		dropped int
	)
	for i, row := range t.Rows {
		if isEmptyRow(row) {
			continue
		}
		rawAmount := t.Value(i, ColAmount)
		amount, err := normalize.ParseAmount(rawAmount)
		if err != nil {
			dropped++
			continue
		}

		tx := &domain.Transaction{
			Row:       t.HeaderRow + i + 1,
			RawDate:   t.Value(i, ColValueDate),
			Payee:     t.Value(i, ColPayee),
			Memo:      t.Value(i, ColMemo),
			Category:  t.Value(i, ColCategory),
			Object:    t.Value(i, ColObject),
			Amount:    amount,
			RawAmount: rawAmount,
		}
		if d, ok := normalize.ParseDate(tx.RawDate); ok {
			tx.ValueDate = &d
		}
		tx.PayeeKey = normalize.JoinKey(tx.Payee)
		txs = append(txs, tx)
	}
	return txs, dropped, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open statement %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read statement sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	book, err := xls.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open statement %s: %w", filepath.Base(path), err)
	}
	sheet, err := book.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, ErrNoSheets
	}

	var rows [][]string
	for _, r := range sheet.GetRows() {
		var values []string
		for _, col := range r.GetCols() {
			values = append(values, col.GetString())
		}
		rows = append(rows, values)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statement %s: %w", filepath.Base(path), err)
	}
	return parseCSV(data)
}

// parseCSV decodes Windows-1252 exports and guesses the delimiter from the
// first line.
func parseCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode statement: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse statement csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{';', '\t', ','} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
