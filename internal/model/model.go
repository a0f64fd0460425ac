package model

import "happenings/internal/datekey"

// Event carries the recurrence-related fields of a stored happening row,
// exactly as persisted. Recurrence interpretation happens in
// internal/recurrence; nothing here is normalized.
type Event struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`

	// EventDate is the legacy single-date anchor (YYYY-MM-DD). It never
	// overrides DayOfWeek/RecurrenceRule when those are present.
	EventDate string `yaml:"event_date,omitempty" json:"event_date,omitempty"`

	// DayOfWeek is free text such as "Monday" or "mondays".
	DayOfWeek string `yaml:"day_of_week,omitempty" json:"day_of_week,omitempty"`

	// RecurrenceRule is one of "weekly", "biweekly", "monthly", an ordinal
	// ("2nd", "1st/3rd", "last"), "custom", an RRULE string, or empty.
	RecurrenceRule string `yaml:"recurrence_rule,omitempty" json:"recurrence_rule,omitempty"`

	CustomDates []string `yaml:"custom_dates,omitempty" json:"custom_dates,omitempty"`

	// VenueID / VenueName are carried through for feeds and display only.
	VenueID   string `yaml:"venue_id,omitempty" json:"venue_id,omitempty"`
	VenueName string `yaml:"venue_name,omitempty" json:"venue_name,omitempty"`
}

// Window is a closed [StartKey, EndKey] range of civil dates.
type Window struct {
	StartKey datekey.Key `json:"start_key"`
	EndKey   datekey.Key `json:"end_key"`
}

// Occurrence is a single concrete date on which an event happens.
type Occurrence struct {
	DateKey datekey.Key `json:"date_key"`
}

// Venue is a read-only catalog row.
type Venue struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Slug string `yaml:"slug" json:"slug"`
}
