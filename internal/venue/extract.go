package venue

import (
	"happenings/internal/model"
)

// ExtractVenueNameFromMessage returns the longest catalog venue name or
// indexed alias found in msg, compared case- and punctuation-insensitively
// on word boundaries. Venue names are returned in their catalog spelling;
// aliases in normalized form. It returns "" when nothing matches.
func ExtractVenueNameFromMessage(msg string, venues []model.Venue, idx AliasIndex) string {
	text := NormalizeForMatch(msg)
	if text == "" {
		return ""
	}

	canon := make(map[string]string, len(venues)+len(idx))
	phrases := make([]string, 0, len(venues)+len(idx))
	add := func(phrase, display string) {
		if phrase == "" || isStopword(phrase) {
			return
		}
		if _, ok := canon[phrase]; ok {
			return
		}
		canon[phrase] = display
		phrases = append(phrases, phrase)
	}

	for _, v := range venues {
		add(NormalizeForMatch(v.Name), v.Name)
	}
	for alias := range idx {
		add(alias, alias)
	}

	sortLongestFirst(phrases)
	for _, p := range phrases {
		if containsPhrase(text, p) {
			return canon[p]
		}
	}
	return ""
}
