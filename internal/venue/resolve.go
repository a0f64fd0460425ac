package venue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"happenings/internal/model"
)

// LocationModeOnline is the draft location mode for online-only events.
const LocationModeOnline = "online"

const (
	maxCandidates = 3
	// aliasConfidence is reported for venues reached through the alias
	// index rather than by name.
	aliasConfidence = 0.9
)

// Input is everything ResolveVenue looks at. Catalog is read-only.
type Input struct {
	DraftVenueID      string        `json:"draft_venue_id,omitempty"`
	DraftVenueName    string        `json:"draft_venue_name,omitempty"`
	UserMessage       string        `json:"user_message,omitempty"`
	Catalog           []model.Venue `json:"-"`
	DraftLocationMode string        `json:"draft_location_mode,omitempty"`
	DraftOnlineURL    string        `json:"draft_online_url,omitempty"`
	IsCustomLocation  bool          `json:"is_custom_location,omitempty"`

	// AliasOverrides are curated aliases keyed by venue slug.
	AliasOverrides map[string][]string `json:"-"`
}

// ResolveVenue decides which catalog venue, if any, the input refers to.
// It never fails; the most conservative outcome is Unresolved.
func ResolveVenue(in Input) Result {
	return ResolveVenueWithIndex(in, nil)
}

// ResolveVenueWithIndex is ResolveVenue with a caller-memoized alias
// index. A nil idx is built from in.Catalog and in.AliasOverrides.
func ResolveVenueWithIndex(in Input, idx AliasIndex) Result {
	if strings.EqualFold(strings.TrimSpace(in.DraftLocationMode), LocationModeOnline) &&
		strings.TrimSpace(in.DraftOnlineURL) != "" {
		return OnlineExplicit{URL: strings.TrimSpace(in.DraftOnlineURL)}
	}

	draftName := strings.TrimSpace(in.DraftVenueName)
	if len(in.Catalog) == 0 {
		return unresolved(draftName)
	}

	if id := strings.TrimSpace(in.DraftVenueID); id != "" {
		// Unknown ids fall through to name resolution.
		for _, v := range in.Catalog {
			if v.ID == id {
				return Resolved{VenueID: v.ID, VenueName: v.Name, Confidence: 1.0, Source: SourceLLMValidated}
			}
		}
	}

	if idx == nil {
		idx = BuildVenueAliasIndex(in.Catalog, in.AliasOverrides)
	}

	name := draftName
	if name == "" {
		name = ExtractVenueNameFromMessage(in.UserMessage, in.Catalog, idx)
	}
	if name == "" {
		// Also covers IsCustomLocation: there is no free text to keep.
		return Unresolved{}
	}

	res := resolveName(name, in.Catalog, idx)
	if _, ok := res.(Resolved); ok {
		return res
	}
	if in.IsCustomLocation {
		return CustomLocation{Name: name}
	}
	return res
}

// resolveName runs exact/slug scoring, then the alias index, then fuzzy
// scoring with the decision thresholds.
func resolveName(name string, catalog []model.Venue, idx AliasIndex) Result {
	scored := scoreAll(name, catalog)

	if len(scored) > 0 && scored[0].Score >= slugScore {
		top := scored[0]
		src := SourceExact
		if top.Score < exactScore {
			src = SourceSlug
		}
		return Resolved{VenueID: top.ID, VenueName: top.Name, Confidence: top.Score, Source: src}
	}

	if ids := idx.Lookup(name); len(ids) > 0 {
		return aliasResult(name, ids, catalog)
	}

	if len(scored) > 0 && scored[0].Score >= ResolveThreshold {
		top := scored[0]
		return Resolved{VenueID: top.ID, VenueName: top.Name, Confidence: top.Score, Source: SourceFuzzy}
	}

	var cands []Candidate
	for _, c := range scored {
		if c.Score < AmbiguousThreshold {
			break
		}
		cands = append(cands, c)
		if len(cands) == maxCandidates {
			break
		}
	}
	if len(cands) > 0 {
		return Ambiguous{Candidates: cands, InputName: name}
	}
	return unresolved(name)
}

func aliasResult(name string, ids []string, catalog []model.Venue) Result {
	byID := make(map[string]model.Venue, len(catalog))
	for _, v := range catalog {
		byID[v.ID] = v
	}

	var cands []Candidate
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			continue
		}
		cands = append(cands, Candidate{ID: v.ID, Name: v.Name, Score: aliasConfidence})
	}
	switch len(cands) {
	case 0:
		return unresolved(name)
	case 1:
		return Resolved{VenueID: cands[0].ID, VenueName: cands[0].Name, Confidence: aliasConfidence, Source: SourceAlias}
	}
	rankCandidates(NormalizeForMatch(name), cands)
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}
	return Ambiguous{Candidates: cands, InputName: name}
}

// scoreAll scores every venue with a positive score and ranks them.
func scoreAll(name string, catalog []model.Venue) []Candidate {
	out := make([]Candidate, 0, len(catalog))
	for _, v := range catalog {
		if s := ScoreVenueMatch(name, v); s > 0 {
			out = append(out, Candidate{ID: v.ID, Name: v.Name, Score: s})
		}
	}
	rankCandidates(NormalizeForMatch(name), out)
	return out
}

// rankCandidates orders by score, then edit distance to the input, then
// name and id, so equal scores still sort deterministically.
func rankCandidates(normInput string, cands []Candidate) {
	dist := make(map[string]int, len(cands))
	for _, c := range cands {
		dist[c.ID] = levenshtein.ComputeDistance(normInput, NormalizeForMatch(c.Name))
	}
	slices.SortStableFunc(cands, func(a, b Candidate) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		if d := cmp.Compare(dist[a.ID], dist[b.ID]); d != 0 {
			return d
		}
		if d := strings.Compare(a.Name, b.Name); d != 0 {
			return d
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func unresolved(name string) Unresolved {
	if name == "" {
		return Unresolved{}
	}
	return Unresolved{InputName: &name}
}
