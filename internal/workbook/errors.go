package workbook

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for statement files that are neither
	// spreadsheets nor CSV.
	ErrUnsupportedFormat = errors.New("unsupported statement format")

	// ErrNoSheets is returned for workbooks without any worksheet.
	ErrNoSheets = errors.New("workbook has no sheets")
)

// MissingColumnsError reports required statement columns that are absent.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("statement is missing required columns: %s", strings.Join(e.Columns, ", "))
}
