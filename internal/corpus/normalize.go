package corpus

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	trimBoth     = "\"'`*_,;:!?()[]{}<>"
	trimTrailing = "."
)

// Normalize maps a tag or query to its canonical form: NFKC, Unicode case
// folding, collapsed whitespace and stripped surrounding punctuation. Tags and
// queries must go through the same function for exact matching to work.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	// A Caser keeps state between calls and cannot be shared.
	s = cases.Fold().String(s)
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return TrimPunctuation(s)
}

// TrimPunctuation strips the surrounding punctuation Normalize removes,
// without changing case. Applying it to normalized text keeps it normalized.
func TrimPunctuation(s string) string {
	s = strings.TrimLeft(s, trimBoth+" ")
	return strings.TrimRight(s, trimBoth+trimTrailing+" ")
}
