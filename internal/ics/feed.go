package ics

import (
	"fmt"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"happenings/internal/model"
	"happenings/internal/recurrence"
)

// FeedOptions controls BuildFeed output.
type FeedOptions struct {
	// Domain is appended to every UID ("<event>-<date>@<domain>").
	Domain string
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	// Stamp is written as DTSTAMP. It is an input so that identical
	// calls produce identical feeds.
	Stamp time.Time
	// Expand is passed through to the expander.
	Expand recurrence.Options
}

// BuildFeed expands every event over w and renders the occurrences as
// all-day VEVENTs, ordered by date and then event id.
func BuildFeed(events []model.Event, w model.Window, opts FeedOptions) (string, error) {
	if opts.Domain == "" {
		opts.Domain = "happenings.local"
	}

	type row struct {
		ev    model.Event
		label string
		occ   model.Occurrence
	}
	var rows []row
	for _, ev := range events {
		d, err := recurrence.InterpretRecurrence(ev)
		if err != nil {
			return "", fmt.Errorf("ics feed: %w", err)
		}
		occ, err := recurrence.ExpandDescriptor(d, w, opts.Expand)
		if err != nil {
			return "", fmt.Errorf("ics feed: event %q: %w", ev.ID, err)
		}
		label := recurrence.LabelFromRecurrence(d)
		for _, o := range occ {
			rows = append(rows, row{ev: ev, label: label, occ: o})
		}
	}
	slices.SortStableFunc(rows, func(a, b row) int {
		if c := a.occ.DateKey.Compare(b.occ.DateKey); c != 0 {
			return c
		}
		return strings.Compare(a.ev.ID, b.ev.ID)
	})

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//happenings//occurrence feed//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, r := range rows {
		uid := fmt.Sprintf("%s-%s@%s", r.ev.ID, r.occ.DateKey, opts.Domain)
		ve := cal.AddEvent(uid)
		ve.SetDtStampTime(opts.Stamp.UTC())
		ve.SetSummary(r.ev.Title)
		ve.SetDescription(r.label)
		if r.ev.VenueName != "" {
			ve.SetLocation(r.ev.VenueName)
		}
		day := r.occ.DateKey.Time(time.UTC)
		ve.SetAllDayStartAt(day)
		ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}

	return cal.Serialize(), nil
}
