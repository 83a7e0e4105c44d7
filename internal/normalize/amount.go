package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparseableAmount is returned when no amount can be read from a value.
var ErrUnparseableAmount = errors.New("unparseable amount")

var (
	amountNoise    = strings.NewReplacer("€", "", "\u00a0", "", " ", "")
	trailingCents  = regexp.MustCompile(`(\d+)[,.](\d{1,2})$`)
	germanThousand = strings.NewReplacer(".", "")
)

// ParseAmount reads a monetary value in German or plain notation.
// With a comma present, dots are thousands separators and the comma is the
// decimal mark ("1.234,56" → 1234.56). Otherwise the value is parsed as is
// ("1234.56" → 1234.56). As a last resort the trailing "<digits>[,.]<cents>"
// group is used.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := amountNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrUnparseableAmount)
	}

	candidate := s
	if strings.Contains(candidate, ",") {
		candidate = strings.ReplaceAll(germanThousand.Replace(candidate), ",", ".")
	}
	if d, err := decimal.NewFromString(candidate); err == nil {
		return d, nil
	}

	if m := trailingCents.FindStringSubmatch(s); m != nil {
		if d, err := decimal.NewFromString(m[1] + "." + m[2]); err == nil {
			return d, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparseableAmount, raw)
}

// ParseCellAmount reads an amount already present in a roster cell. Numeric
// cells are taken verbatim, text cells go through ParseAmount, and anything
// unreadable counts as zero.
func ParseCellAmount(raw string, text bool) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	if !text {
		if d, err := decimal.NewFromString(raw); err == nil {
			return d
		}
	}
	d, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatAmount renders d with two decimals and a decimal comma, e.g. "650,00".
func FormatAmount(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}
