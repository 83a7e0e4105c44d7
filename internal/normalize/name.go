// Package normalize turns free-form roster and statement values into
// comparable names, decimal amounts and dates.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	germanDigraphs = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss", "ı", "i")
	nonNameChars   = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// NormalizeName lower-cases s, folds German umlauts into digraphs, strips any
// remaining diacritics, drops everything outside [a-z0-9 ] and collapses
// whitespace. "Müller-Schäfer" becomes "muellerschaefer".
func NormalizeName(s string) string {
	s = strings.ToLower(norm.NFC.String(s))
	s = germanDigraphs.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = whitespaceRun.ReplaceAllString(s, " ")
	s = nonNameChars.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// JoinKey is NormalizeName without any spaces. Roster rows and statement
// payees are joined on it, so "Müller-Schäfer" and "mueller schaefer" meet.
func JoinKey(s string) string {
	return strings.ReplaceAll(NormalizeName(s), " ", "")
}
