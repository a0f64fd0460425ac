package recurrence

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"happenings/internal/datekey"
	"happenings/internal/model"
)

// Frequency is the normalized shape of a recurrence.
type Frequency string

const (
	FrequencyOneTime  Frequency = "one-time"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyCustom   Frequency = "custom"
	FrequencyUnknown  Frequency = "unknown"
)

// OrdinalLast is the ordinal value for "last <weekday> of the month".
const OrdinalLast = -1

// Descriptor is the normalized recurrence of an event. The expander and
// the label are both derived from it, so they cannot disagree.
type Descriptor struct {
	IsRecurring bool      `json:"is_recurring"`
	Frequency   Frequency `json:"frequency"`

	// DayName is the canonical English weekday ("Monday"), "" if none.
	DayName string `json:"day_name,omitempty"`
	// DayOfWeek is 0 = Sunday .. 6 = Saturday, nil if none.
	DayOfWeek *time.Weekday `json:"day_of_week_index,omitempty"`

	// Interval is the week multiple for weekly patterns (1 weekly, 2 biweekly).
	Interval int `json:"interval"`

	// Ordinals lists monthly ordinals in ascending order, OrdinalLast last.
	Ordinals []int `json:"ordinals,omitempty"`

	ExplicitDate *datekey.Key  `json:"explicit_date,omitempty"`
	CustomDates  []datekey.Key `json:"custom_dates,omitempty"`

	// Anchor fixes the phase of multi-week patterns. It is the legacy
	// event_date when that date falls on the pattern weekday.
	Anchor datekey.Key `json:"anchor,omitempty"`

	// SeriesStart, Count and Until bound RRULE-form series: nothing
	// happens before SeriesStart (the RRULE's DTSTART, i.e. event_date),
	// at most Count dates are produced counting from SeriesStart, and
	// nothing happens after Until. Zero values mean unbounded.
	SeriesStart datekey.Key  `json:"series_start,omitempty"`
	Count       int          `json:"count,omitempty"`
	Until       *datekey.Key `json:"until,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var ordinalWords = map[string]int{
	"1st": 1, "first": 1,
	"2nd": 2, "second": 2,
	"3rd": 3, "third": 3,
	"4th": 4, "fourth": 4,
	"5th": 5, "fifth": 5,
	"last": OrdinalLast,
}

var ordinalSplit = regexp.MustCompile(`\s*(?:/|,|&|\band\b)\s*`)

// ParseWeekday parses a weekday name, abbreviation or plural
// ("Mondays") case-insensitively.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".")
	if wd, ok := weekdayNames[s]; ok {
		return wd, true
	}
	if strings.HasSuffix(s, "s") {
		if wd, ok := weekdayNames[strings.TrimSuffix(s, "s")]; ok {
			return wd, true
		}
	}
	return time.Sunday, false
}

// ruleShape is the parsed form of recurrence_rule before the weekday is
// attached.
type ruleShape struct {
	freq     Frequency
	interval int
	ordinals []int
	weekday  *time.Weekday // only set by RRULE BYDAY

	// RRULE bounds.
	rrule bool
	count int
	until *datekey.Key
}

func parseRule(raw string) ruleShape {
	rule := strings.ToLower(strings.TrimSpace(raw))
	switch rule {
	case "":
		return ruleShape{}
	case "weekly", "every week":
		return ruleShape{freq: FrequencyWeekly, interval: 1}
	case "biweekly", "bi-weekly", "every other week", "every 2 weeks", "fortnightly":
		return ruleShape{freq: FrequencyBiweekly, interval: 2}
	case "monthly":
		return ruleShape{freq: FrequencyMonthly}
	case "custom":
		return ruleShape{freq: FrequencyCustom}
	}
	if strings.HasPrefix(rule, "rrule:") || strings.Contains(rule, "freq=") {
		return parseRRule(raw)
	}
	if ords, ok := parseOrdinals(rule); ok {
		return ruleShape{freq: FrequencyMonthly, ordinals: ords}
	}
	return ruleShape{freq: FrequencyUnknown}
}

func parseOrdinals(rule string) ([]int, bool) {
	parts := ordinalSplit.Split(rule, -1)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, ok := ordinalWords[p]
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, false
	}
	return normalizeOrdinals(out), true
}

// normalizeOrdinals sorts ascending with OrdinalLast at the end and drops
// duplicates.
func normalizeOrdinals(in []int) []int {
	out := slices.Clone(in)
	slices.SortFunc(out, func(a, b int) int {
		if a == OrdinalLast {
			a = 99
		}
		if b == OrdinalLast {
			b = 99
		}
		return a - b
	})
	return slices.Compact(out)
}

// parseRRule maps the subset of RFC 5545 rules that fit the descriptor
// model: weekly with an interval, and monthly by (nth) weekday, optionally
// bounded by COUNT or UNTIL. Any other part makes the rule unknown rather
// than silently dropping it.
func parseRRule(raw string) ruleShape {
	unknown := ruleShape{freq: FrequencyUnknown}

	s := strings.TrimSpace(raw)
	if len(s) >= 6 && strings.EqualFold(s[:6], "RRULE:") {
		s = s[6:]
	}
	s = strings.ToUpper(s)
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return unknown
	}
	if len(opt.Bymonthday) > 0 || len(opt.Bymonth) > 0 || len(opt.Byyearday) > 0 ||
		len(opt.Byweekno) > 0 || len(opt.Byhour) > 0 || len(opt.Byminute) > 0 ||
		len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return unknown
	}

	var wd *time.Weekday
	var nths []int
	for _, w := range opt.Byweekday {
		d := time.Weekday((w.Day() + 1) % 7)
		if wd != nil && *wd != d {
			// Several weekdays do not fit a single-weekday descriptor.
			return unknown
		}
		wd = &d
		if w.N() != 0 {
			nths = append(nths, w.N())
		}
	}

	interval := opt.Interval
	if interval <= 0 {
		interval = 1
	}

	out := ruleShape{rrule: true, count: opt.Count, interval: interval, weekday: wd}
	if v, ok := rrulePart(s, "UNTIL"); ok {
		k, err := untilKey(v)
		if err != nil {
			return unknown
		}
		out.until = &k
	}

	switch opt.Freq {
	case rrule.WEEKLY:
		if len(nths) > 0 || len(opt.Bysetpos) > 0 {
			return unknown
		}
		out.freq = FrequencyWeekly
		if interval == 2 {
			out.freq = FrequencyBiweekly
		}
		return out
	case rrule.MONTHLY:
		// Without BYDAY a monthly RRULE repeats on DTSTART's day of month.
		if interval != 1 || wd == nil {
			return unknown
		}
		if len(nths) > 0 && len(opt.Bysetpos) > 0 {
			return unknown
		}
		if len(nths) == 0 {
			nths = append(nths, opt.Bysetpos...)
		}
		if len(nths) == 0 {
			// Every <weekday> of every month.
			out.freq = FrequencyWeekly
			return out
		}
		var ords []int
		for _, n := range nths {
			switch {
			case n == -1:
				ords = append(ords, OrdinalLast)
			case n >= 1 && n <= 5:
				ords = append(ords, n)
			default:
				return unknown
			}
		}
		out.freq = FrequencyMonthly
		out.ordinals = normalizeOrdinals(ords)
		out.interval = 1
		return out
	default:
		return unknown
	}
}

// rrulePart returns the raw value of one NAME=VALUE part.
func rrulePart(rule, name string) (string, bool) {
	for _, part := range strings.Split(rule, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && k == name {
			return v, true
		}
	}
	return "", false
}

// untilKey reads an RRULE UNTIL value as the last civil date of the
// series. UTC date-times are converted to the default civil zone; DATE
// and floating values are taken literally.
func untilKey(v string) (datekey.Key, error) {
	switch {
	case len(v) == 8:
		t, err := time.Parse("20060102", v)
		if err != nil {
			return "", err
		}
		return datekey.FromTime(t, time.UTC), nil
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return "", err
		}
		loc, err := datekey.LoadZone("")
		if err != nil {
			loc = time.UTC
		}
		return datekey.FromTime(t, loc), nil
	default:
		t, err := time.Parse("20060102T150405", v)
		if err != nil {
			return "", err
		}
		return datekey.FromTime(t, time.UTC), nil
	}
}

// InterpretRecurrence derives a Descriptor from raw event fields.
//
// day_of_week and recurrence_rule are authoritative; event_date is only a
// fallback anchor and never collapses a weekday pattern to one date.
// Unrecognized rules yield FrequencyUnknown. Malformed dates are caller
// bugs and return an error wrapping datekey.ErrInvalidKey.
func InterpretRecurrence(ev model.Event) (Descriptor, error) {
	var eventDate *datekey.Key
	if strings.TrimSpace(ev.EventDate) != "" {
		k, err := datekey.Parse(ev.EventDate)
		if err != nil {
			return Descriptor{}, fmt.Errorf("event %q event_date: %w", ev.ID, err)
		}
		eventDate = &k
	}

	custom := make([]datekey.Key, 0, len(ev.CustomDates))
	for _, s := range ev.CustomDates {
		k, err := datekey.Parse(s)
		if err != nil {
			return Descriptor{}, fmt.Errorf("event %q custom_dates: %w", ev.ID, err)
		}
		custom = append(custom, k)
	}
	slices.Sort(custom)
	custom = slices.Compact(custom)

	shape := parseRule(ev.RecurrenceRule)

	wd, hasWeekday := ParseWeekday(ev.DayOfWeek)
	if shape.weekday != nil {
		wd, hasWeekday = *shape.weekday, true
	}

	oneTime := func(freq Frequency) Descriptor {
		return Descriptor{Frequency: freq, Interval: 1, ExplicitDate: eventDate}
	}

	switch shape.freq {
	case "":
		switch {
		case len(custom) > 0:
			shape.freq = FrequencyCustom
		case hasWeekday:
			// A bare weekday is a weekly signal.
			shape = ruleShape{freq: FrequencyWeekly, interval: 1}
		case eventDate != nil:
			return oneTime(FrequencyOneTime), nil
		default:
			return oneTime(FrequencyUnknown), nil
		}
	case FrequencyUnknown:
		return oneTime(FrequencyUnknown), nil
	}

	if shape.freq == FrequencyCustom {
		if len(custom) == 0 {
			if eventDate != nil {
				return oneTime(FrequencyOneTime), nil
			}
			return oneTime(FrequencyUnknown), nil
		}
		return Descriptor{
			IsRecurring: true,
			Frequency:   FrequencyCustom,
			Interval:    1,
			CustomDates: custom,
		}, nil
	}

	// Weekly, biweekly and monthly need a weekday.
	if !hasWeekday {
		if eventDate == nil {
			return oneTime(FrequencyUnknown), nil
		}
		wd = eventDate.Weekday()
	}

	d := Descriptor{
		IsRecurring: true,
		Frequency:   shape.freq,
		DayName:     wd.String(),
		DayOfWeek:   &wd,
		Interval:    shape.interval,
	}
	if eventDate != nil && eventDate.Weekday() == wd {
		d.Anchor = *eventDate
	}

	if shape.rrule {
		if shape.count > 0 && eventDate == nil {
			// COUNT is relative to DTSTART; without it the dates are unknowable.
			return oneTime(FrequencyUnknown), nil
		}
		if eventDate != nil {
			d.SeriesStart = *eventDate
		}
		d.Count = shape.count
		d.Until = shape.until
	}

	if shape.freq == FrequencyMonthly {
		d.Interval = 1
		d.Ordinals = shape.ordinals
		if len(d.Ordinals) == 0 {
			d.Ordinals = []int{1}
			if d.Anchor != "" {
				// A 5th weekday only exists in some months; read it as "last".
				n, _ := d.Anchor.OrdinalInMonth()
				if n == 5 {
					n = OrdinalLast
				}
				d.Ordinals = []int{n}
			}
		}
	}
	if d.Interval <= 0 {
		d.Interval = 1
	}
	return d, nil
}

// ShouldExpandToMultiple reports whether d can produce more than one
// occurrence.
func ShouldExpandToMultiple(d Descriptor) bool {
	switch d.Frequency {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return d.IsRecurring && d.DayOfWeek != nil && d.Count != 1
	case FrequencyCustom:
		return len(d.CustomDates) > 1
	default:
		return false
	}
}
