package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"happenings/internal/datekey"
	appLog "happenings/internal/log"
	"happenings/internal/model"
)

// ParseEvents converts the VEVENTs of an iCalendar payload into raw event
// rows. DTSTART becomes event_date (in loc), RRULE is kept verbatim as the
// recurrence rule, and RDATE lists become custom dates. Unusable VEVENTs
// are logged and skipped.
func ParseEvents(body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "err", perr)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.ID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.VenueName = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := icsDateKey(dtStart.Value, func() (time.Time, error) { return ve.GetStartAt() }, loc)
	if err != nil {
		return out, err
	}
	out.EventDate = string(start)

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		out.RecurrenceRule = p.Value
		return out, nil
	}

	// RDATE may appear several times, each with a comma-separated list.
	var extra []string
	for _, p := range ve.GetProperties(ical.ComponentProperty("RDATE")) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			k, err := icsDateKey(part, func() (time.Time, error) { return parseICSTime(part, loc) }, loc)
			if err != nil {
				return out, err
			}
			extra = append(extra, string(k))
		}
	}
	if len(extra) > 0 {
		out.RecurrenceRule = "custom"
		out.CustomDates = append([]string{out.EventDate}, extra...)
	}
	return out, nil
}

// icsDateKey reads a DATE value ("20260106") directly and resolves
// DATE-TIME values to their civil date in loc via resolve.
func icsDateKey(raw string, resolve func() (time.Time, error), loc *time.Location) (datekey.Key, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 8 && !strings.Contains(raw, "T") {
		t, err := time.Parse("20060102", raw)
		if err != nil {
			return "", err
		}
		return datekey.FromTime(t, time.UTC), nil
	}
	t, err := resolve()
	if err != nil {
		return "", err
	}
	return datekey.FromTime(t, loc), nil
}

// parseICSTime parses basic UTC or floating DATE-TIME values; floating
// times are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	return time.ParseInLocation("20060102T150405", v, loc)
}
