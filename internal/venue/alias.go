package venue

import (
	"slices"
	"strings"

	"happenings/internal/model"
)

// stopwords are skipped when building acronyms and are never indexed as
// aliases, so an acronym that spells a common word cannot fire on ordinary
// sentences ("Open mic at 7pm").
var stopwords = map[string]struct{}{
	"a": {}, "am": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "do": {}, "for": {}, "from": {}, "go": {},
	"he": {}, "hi": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"me": {}, "my": {}, "no": {}, "not": {}, "of": {}, "off": {}, "ok": {},
	"on": {}, "or": {}, "our": {}, "out": {}, "pm": {}, "so": {}, "the": {},
	"this": {}, "to": {}, "up": {}, "us": {}, "we": {}, "was": {}, "with": {},
	"you": {},
}

func isStopword(s string) bool {
	_, ok := stopwords[s]
	return ok
}

// AliasIndex maps a normalized alias to the sorted ids of every venue it
// names. It is derived purely from its inputs; callers may memoize it per
// catalog version.
type AliasIndex map[string][]string

// GenerateAcronym concatenates the first letters of the non-stopword
// tokens of name. Names with fewer than two such tokens have no acronym.
func GenerateAcronym(name string) string {
	var b strings.Builder
	n := 0
	for _, tok := range Tokenize(name) {
		if isStopword(tok) {
			continue
		}
		b.WriteString(tok[:1])
		n++
	}
	if n < 2 {
		return ""
	}
	return b.String()
}

// BuildVenueAliasIndex indexes generated acronyms for every venue plus the
// curated overrides, which are keyed by venue slug.
func BuildVenueAliasIndex(venues []model.Venue, overrides map[string][]string) AliasIndex {
	idx := AliasIndex{}
	add := func(alias, id string) {
		key := NormalizeForMatch(alias)
		if len(key) < 2 || isStopword(key) {
			return
		}
		if slices.Contains(idx[key], id) {
			return
		}
		idx[key] = append(idx[key], id)
	}

	for _, v := range venues {
		if v.ID == "" {
			continue
		}
		if acr := GenerateAcronym(v.Name); acr != "" {
			add(acr, v.ID)
		}
		slug := v.Slug
		if slug == "" {
			slug = GenerateMatchSlug(v.Name)
		}
		for _, a := range overrides[slug] {
			add(a, v.ID)
		}
	}

	for k := range idx {
		slices.Sort(idx[k])
	}
	return idx
}

// Lookup returns the venue ids for an alias, normalizing it first.
func (idx AliasIndex) Lookup(alias string) []string {
	return idx[NormalizeForMatch(alias)]
}

// sortedAliases returns aliases longest first, then lexically, so scans
// prefer "ltb taproom" over "ltb" and stay deterministic.
func (idx AliasIndex) sortedAliases() []string {
	out := make([]string, 0, len(idx))
	for k := range idx {
		out = append(out, k)
	}
	sortLongestFirst(out)
	return out
}

func sortLongestFirst(phrases []string) {
	slices.SortFunc(phrases, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
}

// containsPhrase reports whether phrase occurs in the normalized text on
// word boundaries. A trailing "s" is allowed because possessives lose
// their apostrophe in normalization ("Dazzle's" -> "dazzles").
func containsPhrase(normText, phrase string) bool {
	padded := " " + normText + " "
	return strings.Contains(padded, " "+phrase+" ") ||
		strings.Contains(padded, " "+phrase+"s ")
}

// ExtractVenueAliasFromMessage finds the longest indexed alias appearing
// as whole words in msg. It returns "" and nil when none does.
func ExtractVenueAliasFromMessage(msg string, idx AliasIndex) (string, []string) {
	text := NormalizeForMatch(msg)
	if text == "" || len(idx) == 0 {
		return "", nil
	}
	for _, alias := range idx.sortedAliases() {
		if containsPhrase(text, alias) {
			return alias, idx[alias]
		}
	}
	return "", nil
}
