package venue

import "encoding/json"

// Kind tags a Result variant.
type Kind string

const (
	KindResolved       Kind = "resolved"
	KindAmbiguous      Kind = "ambiguous"
	KindUnresolved     Kind = "unresolved"
	KindCustomLocation Kind = "custom_location"
	KindOnlineExplicit Kind = "online_explicit"
)

// Source records which pipeline stage produced a Resolved result.
type Source string

const (
	SourceLLMValidated Source = "llm_validated"
	SourceExact        Source = "server_exact"
	SourceSlug         Source = "server_slug"
	SourceFuzzy        Source = "server_fuzzy"
	SourceAlias        Source = "server_alias"
)

// Result is one of Resolved, Ambiguous, Unresolved, CustomLocation or
// OnlineExplicit. The set is closed; switch on the concrete type.
type Result interface {
	Kind() Kind
	isResult()
}

// Resolved names a single catalog venue.
type Resolved struct {
	VenueID    string  `json:"venue_id"`
	VenueName  string  `json:"venue_name"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// Candidate is one possible match inside Ambiguous.
type Candidate struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Ambiguous lists up to three candidates, best first.
type Ambiguous struct {
	Candidates []Candidate `json:"candidates"`
	InputName  string      `json:"input_name,omitempty"`
}

// Unresolved carries the extracted input name, nil when none was found.
type Unresolved struct {
	InputName *string `json:"input_name"`
}

// CustomLocation keeps the caller's free-text location as-is.
type CustomLocation struct {
	Name string `json:"name"`
}

// OnlineExplicit marks an online event with a meeting URL.
type OnlineExplicit struct {
	URL string `json:"url"`
}

func (Resolved) Kind() Kind       { return KindResolved }
func (Ambiguous) Kind() Kind      { return KindAmbiguous }
func (Unresolved) Kind() Kind     { return KindUnresolved }
func (CustomLocation) Kind() Kind { return KindCustomLocation }
func (OnlineExplicit) Kind() Kind { return KindOnlineExplicit }

func (Resolved) isResult()       {}
func (Ambiguous) isResult()      {}
func (Unresolved) isResult()     {}
func (CustomLocation) isResult() {}
func (OnlineExplicit) isResult() {}

// The MarshalJSON methods flatten each variant next to a "status" tag.

func (r Resolved) MarshalJSON() ([]byte, error) {
	type plain Resolved
	return json.Marshal(struct {
		Status Kind `json:"status"`
		plain
	}{KindResolved, plain(r)})
}

func (r Ambiguous) MarshalJSON() ([]byte, error) {
	type plain Ambiguous
	return json.Marshal(struct {
		Status Kind `json:"status"`
		plain
	}{KindAmbiguous, plain(r)})
}

func (r Unresolved) MarshalJSON() ([]byte, error) {
	type plain Unresolved
	return json.Marshal(struct {
		Status Kind `json:"status"`
		plain
	}{KindUnresolved, plain(r)})
}

func (r CustomLocation) MarshalJSON() ([]byte, error) {
	type plain CustomLocation
	return json.Marshal(struct {
		Status Kind `json:"status"`
		plain
	}{KindCustomLocation, plain(r)})
}

func (r OnlineExplicit) MarshalJSON() ([]byte, error) {
	type plain OnlineExplicit
	return json.Marshal(struct {
		Status Kind `json:"status"`
		plain
	}{KindOnlineExplicit, plain(r)})
}
