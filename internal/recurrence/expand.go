package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"happenings/internal/datekey"
	"happenings/internal/model"
)

const (
	defaultMaxOccurrences = 5000
)

// ErrInvalidWindow is returned when a window's bounds are malformed or
// reversed.
var ErrInvalidWindow = errors.New("recurrence: invalid window")

// Options controls expansion. The zero value expands in
// datekey.DefaultZone with the default safety cap.
type Options struct {
	// Location is the civil calendar used to drive rrule. If nil,
	// America/Denver is loaded; on failure UTC is used, which yields the
	// same date keys since only whole days are generated.
	Location *time.Location

	// MaxOccurrences caps the output length. If zero,
	// defaultMaxOccurrences is used.
	MaxOccurrences int
}

var rruleWeekdays = [7]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ExpandOccurrencesForEvent returns the dates in the closed window w on
// which ev happens, ascending and without duplicates.
func ExpandOccurrencesForEvent(ev model.Event, w model.Window) ([]model.Occurrence, error) {
	return ExpandWithOptions(ev, w, Options{})
}

// ExpandWithOptions is ExpandOccurrencesForEvent with explicit options.
func ExpandWithOptions(ev model.Event, w model.Window, opts Options) ([]model.Occurrence, error) {
	d, err := InterpretRecurrence(ev)
	if err != nil {
		return nil, err
	}
	return ExpandDescriptor(d, w, opts)
}

// ExpandDescriptor expands an already interpreted descriptor.
func ExpandDescriptor(d Descriptor, w model.Window, opts Options) ([]model.Occurrence, error) {
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	if opts.Location == nil {
		loc, err := datekey.LoadZone("")
		if err != nil {
			loc = time.UTC
		}
		opts.Location = loc
	}
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = defaultMaxOccurrences
	}

	var keys []datekey.Key
	switch d.Frequency {
	case FrequencyWeekly, FrequencyBiweekly:
		if d.DayOfWeek == nil {
			return []model.Occurrence{}, nil
		}
		keys = bounded(d, expandWeekly(d, w, opts.Location))
	case FrequencyMonthly:
		if d.DayOfWeek == nil {
			return []model.Occurrence{}, nil
		}
		keys = bounded(d, expandMonthly(d, w, opts.Location))
	case FrequencyCustom:
		for _, k := range d.CustomDates {
			if k.InRange(w.StartKey, w.EndKey) {
				keys = append(keys, k)
			}
		}
	default:
		// One-time and unknown both degrade to the explicit date, if any.
		if d.ExplicitDate != nil && d.ExplicitDate.InRange(w.StartKey, w.EndKey) {
			keys = append(keys, *d.ExplicitDate)
		}
	}

	slices.Sort(keys)
	keys = slices.Compact(keys)
	if len(keys) > opts.MaxOccurrences {
		keys = keys[:opts.MaxOccurrences]
	}

	out := make([]model.Occurrence, 0, len(keys))
	for _, k := range keys {
		out = append(out, model.Occurrence{DateKey: k})
	}
	return out, nil
}

func validateWindow(w model.Window) error {
	if _, err := datekey.Parse(string(w.StartKey)); err != nil {
		return fmt.Errorf("%w: start: %w", ErrInvalidWindow, err)
	}
	if _, err := datekey.Parse(string(w.EndKey)); err != nil {
		return fmt.Errorf("%w: end: %w", ErrInvalidWindow, err)
	}
	if w.EndKey.Before(w.StartKey) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidWindow, w.EndKey, w.StartKey)
	}
	return nil
}

// firstWeeklyKey returns the first date >= start on the pattern weekday,
// shifted forward to stay in phase with d.Anchor for multi-week intervals.
func firstWeeklyKey(d Descriptor, start datekey.Key) datekey.Key {
	first := start.NextOnOrAfter(*d.DayOfWeek)
	step := 7 * d.Interval
	if d.Interval > 1 && d.Anchor != "" {
		off := datekey.DaysBetween(d.Anchor, first) % step
		if off < 0 {
			off += step
		}
		if off != 0 {
			first = first.AddDays(step - off)
		}
	}
	return first
}

// bounded drops keys outside [SeriesStart, Until].
func bounded(d Descriptor, keys []datekey.Key) []datekey.Key {
	if d.SeriesStart == "" && d.Until == nil {
		return keys
	}
	return slices.DeleteFunc(keys, func(k datekey.Key) bool {
		return (d.SeriesStart != "" && k.Before(d.SeriesStart)) ||
			(d.Until != nil && k.After(*d.Until))
	})
}

func expandWeekly(d Descriptor, w model.Window, loc *time.Location) []datekey.Key {
	first := firstWeeklyKey(d, w.StartKey)
	if d.Count > 0 && d.SeriesStart != "" {
		// COUNT is counted from DTSTART, not from the window.
		first = d.SeriesStart
	}
	if first.After(w.EndKey) {
		return nil
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  d.Interval,
		Byweekday: []rrule.Weekday{rruleWeekdays[*d.DayOfWeek]},
		Dtstart:   first.Time(loc),
		Count:     d.Count,
	})
	if err != nil {
		return nil
	}
	return between(r, w, loc)
}

func expandMonthly(d Descriptor, w model.Window, loc *time.Location) []datekey.Key {
	base := rruleWeekdays[*d.DayOfWeek]
	days := make([]rrule.Weekday, 0, len(d.Ordinals))
	for _, n := range d.Ordinals {
		days = append(days, base.Nth(n))
	}
	start := w.StartKey.FirstOfMonth()
	if d.Count > 0 && d.SeriesStart != "" {
		start = d.SeriesStart
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.MONTHLY,
		Byweekday: days,
		Dtstart:   start.Time(loc),
		Count:     d.Count,
	})
	if err != nil {
		return nil
	}
	return between(r, w, loc)
}

func between(r *rrule.RRule, w model.Window, loc *time.Location) []datekey.Key {
	var set rrule.Set
	set.RRule(r)

	times := set.Between(w.StartKey.Time(loc), w.EndKey.Time(loc), true)
	out := make([]datekey.Key, 0, len(times))
	for _, t := range times {
		out = append(out, datekey.FromTime(t, loc))
	}
	return out
}
