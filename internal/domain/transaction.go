package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents one bank statement row after normalization.
// Rows whose amount could not be parsed never become a Transaction.
type Transaction struct {
	Row int // 1-based row number in the statement file, header included

	ValueDate *time.Time // parsed from "Wertstellung", nil when unparseable
	RawDate   string     // original "Wertstellung" text

	Payee    string // "Empfänger/Auftraggeber" as written
	Memo     string // "Verwendungszweck"
	Category string // "Kategorie", empty when the column is absent
	Object   string // "Kontoname"

	Amount    decimal.Decimal // parsed from "Betrag"
	RawAmount string

	PayeeKey string // join key derived from Payee

	Label         Label
	Keyword       string     // literal classifier hit, or the label's display name
	MonthOverride time.Month // zero when the memo names no month
}

// ClassificationText is the text the classifier reads: memo, category and
// the account object name.
func (t *Transaction) ClassificationText() string {
	return t.Memo + " " + t.Category + " " + t.Object
}

// OverrideText is the text searched for an explicit month name.
func (t *Transaction) OverrideText() string {
	return t.Memo + " " + t.Category
}
