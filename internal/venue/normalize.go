package venue

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents strips combining marks after canonical decomposition, so
// "Café" and "Cafe" normalize alike.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeForMatch lowercases s, folds accents, spells "&" as "and",
// drops apostrophes and collapses every other non-alphanumeric run into a
// single space.
func NormalizeForMatch(s string) string {
	s = strings.ToLower(strings.TrimSpace(foldAccents(s)))
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true

	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevSpace = false
		case r == '\'' || r == '’':
			// "Dazzle's" -> "dazzles"
		case r == '&':
			if !prevSpace {
				b.WriteByte(' ')
			}
			b.WriteString("and ")
			prevSpace = true
		default:
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// GenerateMatchSlug returns the hyphenated slug form of s
// ("Long Table Brewhouse" -> "long-table-brewhouse").
func GenerateMatchSlug(s string) string {
	return strings.Join(Tokenize(s), "-")
}

// Tokenize returns the whitespace-delimited tokens of NormalizeForMatch(s).
func Tokenize(s string) []string {
	return strings.Fields(NormalizeForMatch(s))
}
