package pipeline

import "errors"

var (
	// ErrRosterUnreadable wraps failures to open or parse the roster workbook.
	ErrRosterUnreadable = errors.New("roster workbook unreadable")

	// ErrStatementUnreadable wraps failures to read the bank statement.
	ErrStatementUnreadable = errors.New("bank statement unreadable")
)
