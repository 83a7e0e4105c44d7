// Package annotation models the payment history kept in a roster cell's
// comment: one line per allocated payment, "<date> [<keyword>]: <amount> EUR".
package annotation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/akuvvet/Automatisierung/internal/normalize"
	"github.com/shopspring/decimal"
)

var entryPattern = regexp.MustCompile(`(\d{1,2}\.\d{1,2}(?:\.\d{2,4})?)\s*(?:\[(.*?)\])?\s*:\s*([+-]?\d+(?:[.,]\d+)?)`)

// Entry is one recorded payment.
type Entry struct {
	Date    string // display date, DD.MM.YYYY or DD.MM
	Keyword string
	Amount  decimal.Decimal
}

// Key identifies a payment independently of its keyword: normalized date plus
// the amount rounded to cents.
type Key struct {
	Date   string
	Amount string
}

// Key returns the idempotence key of e.
func (e Entry) Key() Key {
	return NewKey(e.Date, e.Amount)
}

// NewKey builds a Key from a display date and an amount.
func NewKey(date string, amount decimal.Decimal) Key {
	return Key{
		Date:   normalize.NormalizeDisplayDate(date),
		Amount: amount.Round(2).StringFixed(2),
	}
}

// String formats e as a single annotation line.
func (e Entry) String() string {
	if e.Keyword != "" {
		return fmt.Sprintf("%s [%s]: %s EUR", e.Date, e.Keyword, normalize.FormatAmount(e.Amount))
	}
	return fmt.Sprintf("%s: %s EUR", e.Date, normalize.FormatAmount(e.Amount))
}

// History is an ordered, duplicate-free set of entries.
type History struct {
	entries []Entry
	seen    map[Key]struct{}
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{seen: make(map[Key]struct{})}
}

// Parse reads every entry it can find in text. Lines that do not look like an
// entry are ignored; repeated keys are kept once.
func Parse(text string) *History {
	h := NewHistory()
	for _, line := range strings.Split(text, "\n") {
		for _, m := range entryPattern.FindAllStringSubmatch(line, -1) {
			amount, err := decimal.NewFromString(strings.ReplaceAll(m[3], ",", "."))
			if err != nil {
				continue
			}
			h.Add(Entry{
				Date:    normalize.NormalizeDisplayDate(m[1]),
				Keyword: strings.TrimSpace(m[2]),
				Amount:  amount.Round(2),
			})
		}
	}
	return h
}

// Add appends e unless an entry with the same key is already present.
// It reports whether e was added.
func (h *History) Add(e Entry) bool {
	k := e.Key()
	if _, ok := h.seen[k]; ok {
		return false
	}
	h.seen[k] = struct{}{}
	h.entries = append(h.entries, e)
	return true
}

// Contains reports whether k is recorded.
func (h *History) Contains(k Key) bool {
	_, ok := h.seen[k]
	return ok
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the entries in insertion order.
func (h *History) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// String renders the history, one entry per line.
func (h *History) String() string {
	lines := make([]string, len(h.entries))
	for i, e := range h.entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}
