package venue

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
)

// EditMode is the conversational draft mode.
type EditMode string

const (
	ModeCreate         EditMode = "create"
	ModeEditSeries     EditMode = "edit_series"
	ModeEditOccurrence EditMode = "edit_occurrence"
)

// GateArgs are the inputs of ShouldResolveVenue.
type GateArgs struct {
	Mode              EditMode
	HasLocationIntent bool
	DraftPayload      map[string]any
}

// venueSignalKeys are draft fields that identify a location.
var venueSignalKeys = []string{"venue_id", "venue_name", "custom_location_name", "online_url"}

// ShouldResolveVenue reports whether venue resolution should run for a
// draft. Creation always resolves; single-occurrence edits never do;
// series edits (and unrecognized modes) only when the message talks about
// location or the draft already carries venue fields.
func ShouldResolveVenue(a GateArgs) bool {
	switch a.Mode {
	case ModeCreate:
		return true
	case ModeEditOccurrence:
		return false
	default:
		return a.HasLocationIntent || HasVenueSignalsInDraft(a.DraftPayload)
	}
}

// HasVenueSignalsInDraft reports whether any venue-identifying field in
// the draft holds a meaningful value: a non-blank string, a non-zero
// number or a non-empty collection. Booleans never count.
func HasVenueSignalsInDraft(draft map[string]any) bool {
	for _, k := range venueSignalKeys {
		if isSignal(draft[k]) {
			return true
		}
	}
	return false
}

func isSignal(v any) bool {
	switch t := v.(type) {
	case nil, bool:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return isSignal(rv.Elem().Interface())
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.String:
		return strings.TrimSpace(rv.String()) != ""
	default:
		return !rv.IsZero()
	}
}

var locationIntent = regexp.MustCompile(`(?i)\b(venue|location|address|where|moved? to|moving to|held at|hosted at|relocat\w*|new spot|online|zoom|livestream)\b`)

// HasLocationIntent is a keyword heuristic for messages that talk about
// where an event happens.
func HasLocationIntent(msg string) bool {
	return locationIntent.MatchString(msg)
}
