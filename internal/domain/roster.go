package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RosterRow is one tenant row of the roster sheet.
type RosterRow struct {
	SheetRow  int    // 1-based row in the roster sheet
	Name      string // column A as written
	Secondary string // secondary occupant (second header column)
	Object    string // rented object (third header column)

	Key          string // join key derived from Name
	SecondaryKey string // normalized Secondary, single spaces kept
	Agency       bool   // Name identifies a government payer
}

// Allocation is a transaction assigned to a roster row and a month.
type Allocation struct {
	Row         *RosterRow
	Month       time.Month
	Amount      decimal.Decimal
	Date        *time.Time // value date, or the date recovered from the raw text
	DisplayDate string     // DD.MM.YYYY, or the raw date text when nothing parsed
	Keyword     string
	Transaction *Transaction
}

var agencyKeys = []string{"jobcenter", "agentur", "stadt wuppertal"}

// IsAgency reports whether a normalized owner name belongs to a government
// payer that pays on behalf of the secondary occupant.
func IsAgency(normalizedName string) bool {
	for _, k := range agencyKeys {
		if strings.Contains(normalizedName, k) {
			return true
		}
	}
	return false
}
