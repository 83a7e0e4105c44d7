// Package workbook reads and writes the spreadsheets involved in a
// reconciliation: the tenant roster (xlsx, via excelize) and the bank
// statement (xlsx, xls or csv).
package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/akuvvet/Automatisierung/internal/normalize"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	// RosterSheetName is the conventional roster sheet; the first sheet is
	// used when it is absent.
	RosterSheetName = "mieter"

	// AnnotationAuthor is the author recorded on cell comments.
	AnnotationAuthor = "System"

	amountNumFmt = 4 // #,##0.00
	dateNumFmt   = "dd.mm.yyyy"
)

// CellFormat selects the number format applied to a written cell.
type CellFormat int

const (
	FormatNone CellFormat = iota
	FormatAmount
	FormatDate
)

type styleKey struct {
	base   int
	format CellFormat
}

// Roster is an open roster workbook.
type Roster struct {
	file     *excelize.File
	sheet    string
	rows     [][]string
	headers  *HeaderMap
	styles   map[styleKey]int
	comments map[string]string
	merged   []excelize.MergeCell
}

// OpenRoster opens the workbook at path and locates the roster sheet and its
// header row.
func OpenRoster(path string) (*Roster, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open roster %s: %w", filepath.Base(path), err)
	}

	r, err := newRoster(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func newRoster(f *excelize.File) (*Roster, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, RosterSheetName) {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read roster sheet %q: %w", sheet, err)
	}
	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, fmt.Errorf("read merged cells of %q: %w", sheet, err)
	}

	return &Roster{
		file:    f,
		sheet:   sheet,
		rows:    rows,
		headers: ScanHeaders(rows, HeaderScanRows),
		styles:  make(map[styleKey]int),
		merged:  merged,
	}, nil
}

// Sheet returns the name of the roster sheet.
func (r *Roster) Sheet() string {
	return r.sheet
}

// Headers returns the roster's header map.
func (r *Roster) Headers() *HeaderMap {
	return r.headers
}

// Tenants returns the data rows below the header: name from column A,
// secondary occupant from B, object from C. Rows without a name are skipped.
// When two names share a join key only the first row is returned; agency
// rows are always kept and matched by their secondary occupant.
func (r *Roster) Tenants() []*domain.RosterRow {
	var out []*domain.RosterRow
	seen := make(map[string]bool)

	for i := r.headers.Row; i < len(r.rows); i++ {
		name := strings.TrimSpace(cellAt(r.rows[i], 0))
		if name == "" {
			continue
		}
		row := &domain.RosterRow{
			SheetRow:  i + 1,
			Name:      name,
			Secondary: strings.TrimSpace(cellAt(r.rows[i], 1)),
			Object:    strings.TrimSpace(cellAt(r.rows[i], 2)),
			Key:       normalize.JoinKey(name),
		}
		row.SecondaryKey = normalize.NormalizeName(row.Secondary)
		row.Agency = domain.IsAgency(normalize.NormalizeName(name))

		if row.Key == "" {
			continue
		}
		if !row.Agency {
			if seen[row.Key] {
				continue
			}
			seen[row.Key] = true
		}
		out = append(out, row)
	}
	return out
}

// ReadAmount returns the amount currently in cell, zero when empty or
// unreadable.
func (r *Roster) ReadAmount(cell string) (decimal.Decimal, error) {
	cell, err := r.anchor(cell)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := r.file.GetCellValue(r.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return decimal.Zero, fmt.Errorf("read %s: %w", cell, err)
	}
	text, err := r.isText(cell)
	if err != nil {
		return decimal.Zero, err
	}
	return normalize.ParseCellAmount(raw, text), nil
}

// ReadDate returns the date currently in cell as display text. Serial dates
// are rendered DD.MM.YYYY, text is returned trimmed.
func (r *Roster) ReadDate(cell string) (string, error) {
	cell, err := r.anchor(cell)
	if err != nil {
		return "", err
	}
	raw, err := r.file.GetCellValue(r.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", fmt.Errorf("read %s: %w", cell, err)
	}
	raw = strings.TrimSpace(raw)
	text, err := r.isText(cell)
	if err != nil {
		return "", err
	}
	if !text {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			if t, ok := normalize.DateFromSerial(f); ok {
				return normalize.FormatDate(t), nil
			}
		}
	}
	return raw, nil
}

// WriteAmount stores amount in cell with a two-decimal number format.
func (r *Roster) WriteAmount(cell string, amount decimal.Decimal) error {
	cell, err := r.anchor(cell)
	if err != nil {
		return err
	}
	style, err := r.style(cell, FormatAmount)
	if err != nil {
		return err
	}
	if err := r.file.SetCellValue(r.sheet, cell, amount.Round(2).InexactFloat64()); err != nil {
		return fmt.Errorf("write %s: %w", cell, err)
	}
	return r.file.SetCellStyle(r.sheet, cell, cell, style)
}

// WriteDate stores t in cell formatted DD.MM.YYYY.
func (r *Roster) WriteDate(cell string, t time.Time) error {
	cell, err := r.anchor(cell)
	if err != nil {
		return err
	}
	style, err := r.style(cell, FormatDate)
	if err != nil {
		return err
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if err := r.file.SetCellValue(r.sheet, cell, day); err != nil {
		return fmt.Errorf("write %s: %w", cell, err)
	}
	return r.file.SetCellStyle(r.sheet, cell, cell, style)
}

// Annotation returns the comment text attached to cell, "" when none.
func (r *Roster) Annotation(cell string) (string, error) {
	cell, err := r.anchor(cell)
	if err != nil {
		return "", err
	}
	if err := r.loadComments(); err != nil {
		return "", err
	}
	return r.comments[cell], nil
}

// SetAnnotation replaces the comment on cell with text.
func (r *Roster) SetAnnotation(cell, text string) error {
	cell, err := r.anchor(cell)
	if err != nil {
		return err
	}
	if err := r.loadComments(); err != nil {
		return err
	}
	if _, ok := r.comments[cell]; ok {
		if err := r.file.DeleteComment(r.sheet, cell); err != nil {
			return fmt.Errorf("delete comment %s: %w", cell, err)
		}
	}
	err = r.file.AddComment(r.sheet, excelize.Comment{
		Cell:   cell,
		Author: AnnotationAuthor,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("add comment %s: %w", cell, err)
	}
	r.comments[cell] = text
	return nil
}

// Column describes one column of a generated sheet.
type Column struct {
	Header string
	Format CellFormat
}

// ReplaceSheet drops sheet name if present and writes it anew with a header
// row and rows. Values may be strings, numbers, time.Time or decimals.
func (r *Roster) ReplaceSheet(name string, columns []Column, rows [][]any) error {
	if strings.EqualFold(name, r.sheet) {
		return fmt.Errorf("refusing to replace the roster sheet %q", name)
	}
	if idx, err := r.file.GetSheetIndex(name); err == nil && idx >= 0 {
		if err := r.file.DeleteSheet(name); err != nil {
			return fmt.Errorf("delete sheet %q: %w", name, err)
		}
	}
	if _, err := r.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}

	for c, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := r.file.SetCellValue(name, cell, col.Header); err != nil {
			return err
		}
	}

	formats := make(map[CellFormat]int)
	for _, f := range []CellFormat{FormatAmount, FormatDate} {
		id, err := r.file.NewStyle(newFormatStyle(nil, f))
		if err != nil {
			return fmt.Errorf("create style: %w", err)
		}
		formats[f] = id
	}

	for i, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			if d, ok := v.(decimal.Decimal); ok {
				v = d.Round(2).InexactFloat64()
			}
			if err := r.file.SetCellValue(name, cell, v); err != nil {
				return fmt.Errorf("write %s!%s: %w", name, cell, err)
			}
			if c < len(columns) && columns[c].Format != FormatNone {
				if err := r.file.SetCellStyle(name, cell, cell, formats[columns[c].Format]); err != nil {
					return err
				}
			}
		}
	}

	if idx, err := r.file.GetSheetIndex(r.sheet); err == nil && idx >= 0 {
		r.file.SetActiveSheet(idx)
	}
	return nil
}

// SaveAs writes the workbook to path, creating parent directories.
func (r *Roster) SaveAs(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := r.file.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Close releases the workbook.
func (r *Roster) Close() error {
	return r.file.Close()
}

// anchor maps a cell inside a merged range to the range's top-left cell,
// which is the only one holding a value.
func (r *Roster) anchor(cell string) (string, error) {
	col, row, err := excelize.CellNameToCoordinates(cell)
	if err != nil {
		return "", fmt.Errorf("invalid cell %q: %w", cell, err)
	}
	for _, m := range r.merged {
		c1, r1, err1 := excelize.CellNameToCoordinates(m.GetStartAxis())
		c2, r2, err2 := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err1 != nil || err2 != nil {
			continue
		}
		if col >= c1 && col <= c2 && row >= r1 && row <= r2 {
			return m.GetStartAxis(), nil
		}
	}
	return cell, nil
}

func (r *Roster) isText(cell string) (bool, error) {
	typ, err := r.file.GetCellType(r.sheet, cell)
	if err != nil {
		return false, fmt.Errorf("cell type %s: %w", cell, err)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return true, nil
	}
	return false, nil
}

func (r *Roster) loadComments() error {
	if r.comments != nil {
		return nil
	}
	list, err := r.file.GetComments(r.sheet)
	if err != nil {
		return fmt.Errorf("read comments: %w", err)
	}
	r.comments = make(map[string]string, len(list))
	for _, c := range list {
		r.comments[c.Cell] = commentText(c)
	}
	return nil
}

// style returns a style id that keeps the cell's current formatting and
// swaps in the number format.
func (r *Roster) style(cell string, format CellFormat) (int, error) {
	base, err := r.file.GetCellStyle(r.sheet, cell)
	if err != nil {
		return 0, fmt.Errorf("cell style %s: %w", cell, err)
	}
	key := styleKey{base: base, format: format}
	if id, ok := r.styles[key]; ok {
		return id, nil
	}

	var current *excelize.Style
	if base != 0 {
		if s, err := r.file.GetStyle(base); err == nil {
			current = s
		}
	}
	id, err := r.file.NewStyle(newFormatStyle(current, format))
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	r.styles[key] = id
	return id, nil
}

func newFormatStyle(base *excelize.Style, format CellFormat) *excelize.Style {
	style := &excelize.Style{}
	if base != nil {
		copied := *base
		style = &copied
	}
	switch format {
	case FormatAmount:
		style.NumFmt = amountNumFmt
		style.CustomNumFmt = nil
	case FormatDate:
		custom := dateNumFmt
		style.NumFmt = 0
		style.CustomNumFmt = &custom
	}
	return style
}

// commentText joins the plain and rich text parts of a comment.
func commentText(c excelize.Comment) string {
	var b strings.Builder
	b.WriteString(c.Text)
	for _, run := range c.Paragraph {
		b.WriteString(run.Text)
	}
	return b.String()
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
