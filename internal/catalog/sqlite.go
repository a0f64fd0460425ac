package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"happenings/internal/model"
)

// Schema is the table layout LoadSQLite reads. Writers own the database;
// it is exported so tests and tooling can create compatible files.
const Schema = `
CREATE TABLE IF NOT EXISTS venues (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS venue_aliases (
	slug  TEXT NOT NULL,
	alias TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL DEFAULT '',
	event_date      TEXT,
	day_of_week     TEXT,
	recurrence_rule TEXT,
	custom_dates    TEXT,
	venue_id        TEXT,
	venue_name      TEXT
);
`

// LoadSQLite reads a catalog snapshot from a SQLite database.
// custom_dates is stored as a comma-separated list of date keys.
func LoadSQLite(ctx context.Context, path string) (*Snapshot, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer db.Close()

	snap := &Snapshot{Aliases: map[string][]string{}}

	if err := queryVenues(ctx, db, snap); err != nil {
		return nil, err
	}
	if err := queryAliases(ctx, db, snap); err != nil {
		return nil, err
	}
	if err := queryEvents(ctx, db, snap); err != nil {
		return nil, err
	}
	if err := snap.validate(); err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return snap, nil
}

func queryVenues(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	rows, err := db.QueryContext(ctx, `SELECT id, name, slug FROM venues ORDER BY id`)
	if err != nil {
		return fmt.Errorf("catalog: query venues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Slug); err != nil {
			return fmt.Errorf("catalog: scan venue: %w", err)
		}
		snap.Venues = append(snap.Venues, v)
	}
	return rows.Err()
}

func queryAliases(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	rows, err := db.QueryContext(ctx, `SELECT slug, alias FROM venue_aliases ORDER BY slug, alias`)
	if err != nil {
		return fmt.Errorf("catalog: query venue_aliases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slug, alias string
		if err := rows.Scan(&slug, &alias); err != nil {
			return fmt.Errorf("catalog: scan alias: %w", err)
		}
		snap.Aliases[slug] = append(snap.Aliases[slug], alias)
	}
	return rows.Err()
}

func queryEvents(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, event_date, day_of_week, recurrence_rule, custom_dates, venue_id, venue_name
		FROM events ORDER BY id`)
	if err != nil {
		return fmt.Errorf("catalog: query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev model.Event
		var eventDate, dayOfWeek, rule, custom, venueID, venueName sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Title, &eventDate, &dayOfWeek, &rule, &custom, &venueID, &venueName); err != nil {
			return fmt.Errorf("catalog: scan event: %w", err)
		}
		ev.EventDate = eventDate.String
		ev.DayOfWeek = dayOfWeek.String
		ev.RecurrenceRule = rule.String
		ev.VenueID = venueID.String
		ev.VenueName = venueName.String
		ev.CustomDates = splitDates(custom.String)
		snap.Events = append(snap.Events, ev)
	}
	return rows.Err()
}

func splitDates(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
