package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DisplayDateLayout is the date format used in the roster and annotations.
const DisplayDateLayout = "02.01.2006"

// maxSerial is 9999-12-31 as a spreadsheet day count.
const maxSerial = 2958465

var (
	serialEpoch  = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	germanDate   = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	isoInText    = regexp.MustCompile(`(\d{4})[-/.](\d{2})[-/.](\d{2})`)
	shortDisplay = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})(?:\.(\d{2,4}))?$`)
)

// ParseDate reads a statement date. A plain number is taken as a spreadsheet
// serial day count; text has its whitespace removed, slashes turned into dots
// and must then read as DD.MM.YYYY.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return DateFromSerial(f)
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		if r == '/' {
			return '.'
		}
		return r
	}, s)

	m := germanDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	return civilDate(m[3], m[2], m[1])
}

// DateFromSerial converts a spreadsheet serial day count (epoch 1899-12-30)
// to a date. The time of day is dropped.
func DateFromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < 1 || serial > maxSerial {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(math.Floor(serial))), true
}

// RecoverISODate finds the first YYYY-MM-DD style date anywhere in raw.
func RecoverISODate(raw string) (time.Time, bool) {
	m := isoInText.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	return civilDate(m[1], m[2], m[3])
}

// FormatDate renders t as DD.MM.YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DisplayDateLayout)
}

// NormalizeDisplayDate canonicalizes a date as it appears in annotations so
// that "5.3.2024", "05.03.24" and "05.03.2024" compare equal. Day-month
// values without a year become "DD.MM". Unrecognized text is returned
// trimmed.
func NormalizeDisplayDate(s string) string {
	s = strings.TrimSpace(s)
	if m := shortDisplay.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if m[3] == "" {
			return fmt.Sprintf("%02d.%02d", day, month)
		}
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		if t, ok := civilDate(year, m[2], m[1]); ok {
			return FormatDate(t)
		}
		return fmt.Sprintf("%02d.%02d.%s", day, month, year)
	}
	if t, ok := ParseDate(s); ok {
		return FormatDate(t)
	}
	if t, ok := RecoverISODate(s); ok {
		return FormatDate(t)
	}
	return s
}

func civilDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
