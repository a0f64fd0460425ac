package venue

import (
	"math"

	"happenings/internal/model"
)

// Decision thresholds for name scoring.
const (
	ResolveThreshold   = 0.80
	AmbiguousThreshold = 0.40
)

const (
	exactScore      = 1.0
	slugScore       = 0.95
	firstTokenBoost = 0.05
	// fuzzyCeiling keeps token scores strictly below an exact match.
	fuzzyCeiling = 0.99
)

// TokenJaccardScore is |a ∩ b| / |a ∪ b| over the token sets.
func TokenJaccardScore(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

// ScoreVenueMatch scores input against one catalog venue:
// 1.0 for a normalized exact match, 0.95 for a slug match, otherwise token
// Jaccard plus a small boost when the first tokens agree.
func ScoreVenueMatch(input string, v model.Venue) float64 {
	in := NormalizeForMatch(input)
	if in == "" {
		return 0
	}
	if in == NormalizeForMatch(v.Name) {
		return exactScore
	}
	slug := GenerateMatchSlug(input)
	if v.Slug != "" && slug == v.Slug {
		return slugScore
	}

	a, b := Tokenize(input), Tokenize(v.Name)
	score := TokenJaccardScore(a, b)
	if score > 0 && a[0] == b[0] {
		score += firstTokenBoost
	}
	return math.Min(score, fuzzyCeiling)
}
