package domain

import "time"

// MonthColumns names the header pair a month occupies in the roster.
type MonthColumns struct {
	Amount string
	Date   string
}

// Months maps calendar months to their roster headers. March is "Mrz".
var Months = map[time.Month]MonthColumns{
	time.January:   {Amount: "Jan", Date: "ZE-Jan"},
	time.February:  {Amount: "Feb", Date: "ZE-Feb"},
	time.March:     {Amount: "Mrz", Date: "ZE-Mrz"},
	time.April:     {Amount: "Apr", Date: "ZE-Apr"},
	time.May:       {Amount: "Mai", Date: "ZE-Mai"},
	time.June:      {Amount: "Jun", Date: "ZE-Jun"},
	time.July:      {Amount: "Jul", Date: "ZE-Jul"},
	time.August:    {Amount: "Aug", Date: "ZE-Aug"},
	time.September: {Amount: "Sep", Date: "ZE-Sep"},
	time.October:   {Amount: "Okt", Date: "ZE-Okt"},
	time.November:  {Amount: "Nov", Date: "ZE-Nov"},
	time.December:  {Amount: "Dez", Date: "ZE-Dez"},
}

// MonthIndex returns the zero-based index of m (January is 0).
func MonthIndex(m time.Month) int {
	return int(m) - 1
}

// MonthAbbrev returns the roster abbreviation of m, or "" for the zero month.
func MonthAbbrev(m time.Month) string {
	return Months[m].Amount
}
