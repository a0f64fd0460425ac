// Package datekey implements civil-calendar date keys ("YYYY-MM-DD").
//
// A Key names a calendar day, not an instant. All arithmetic is done on the
// (year, month, day) triple so that DST transitions in the display zone can
// never shift a key by one day. A *time.Location is only needed at the
// edges: converting an instant to its local day (FromTime/Today) and a key
// back to a local midnight (Time).
package datekey

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultZone is the civil calendar every event key is expressed in.
const DefaultZone = "America/Denver"

const layout = "2006-01-02"

// ErrInvalidKey is returned for strings that are not a valid YYYY-MM-DD date.
var ErrInvalidKey = errors.New("datekey: invalid date key")

// Key is a calendar date in YYYY-MM-DD form.
type Key string

// Parse validates s and returns it as a Key. Surrounding whitespace is
// ignored; anything else that is not a real calendar date is rejected.
func Parse(s string) (Key, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	// time.Parse accepts only zero-padded fields for this layout, so
	// formatting back must reproduce s exactly.
	if t.Format(layout) != s {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key(s), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// LoadZone loads an IANA zone, defaulting to DefaultZone for "".
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("datekey: load zone %q: %w", name, err)
	}
	return loc, nil
}

// FromDate builds a Key from a civil date, normalizing overflow the same
// way time.Date does (e.g. January 32 -> February 1).
func FromDate(year int, month time.Month, day int) Key {
	return Key(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(layout))
}

// FromTime returns the civil date of instant t in loc.
func FromTime(t time.Time, loc *time.Location) Key {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return FromDate(lt.Year(), lt.Month(), lt.Day())
}

// Today returns the key of now in loc. Callers pass now explicitly.
func Today(now time.Time, loc *time.Location) Key {
	return FromTime(now, loc)
}

// String implements fmt.Stringer.
func (k Key) String() string { return string(k) }

// Date returns the civil components of k. k must be valid.
func (k Key) Date() (int, time.Month, int) {
	return k.utc().Date()
}

// utc interprets k as a midnight UTC instant, which is only used as a
// carrier for civil arithmetic (UTC has no DST).
func (k Key) utc() time.Time {
	t, err := time.Parse(layout, string(k))
	if err != nil {
		panic(fmt.Sprintf("datekey: use of invalid key %q", string(k)))
	}
	return t
}

// Time returns local midnight of k in loc.
func (k Key) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := k.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// AddDays returns the key n calendar days after k (n may be negative).
func (k Key) AddDays(n int) Key {
	y, m, d := k.Date()
	return FromDate(y, m, d+n)
}

// Weekday returns the day of week of k.
func (k Key) Weekday() time.Weekday {
	return k.utc().Weekday()
}

// Compare returns -1, 0 or +1. Valid keys order lexically.
func (k Key) Compare(o Key) int {
	return strings.Compare(string(k), string(o))
}

func (k Key) Before(o Key) bool { return k < o }
func (k Key) After(o Key) bool  { return k > o }

// InRange reports whether start <= k <= end.
func (k Key) InRange(start, end Key) bool {
	return k >= start && k <= end
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b Key) int {
	return int((b.utc().Unix() - a.utc().Unix()) / 86400)
}

// FirstOfMonth returns the first day of k's month.
func (k Key) FirstOfMonth() Key {
	y, m, _ := k.Date()
	return FromDate(y, m, 1)
}

// NextOnOrAfter returns the first key >= k falling on wd.
func (k Key) NextOnOrAfter(wd time.Weekday) Key {
	delta := (int(wd) - int(k.Weekday()) + 7) % 7
	return k.AddDays(delta)
}

// NthWeekdayOfMonth returns the n-th wd of the given month. n = -1 selects
// the last one. ok is false when the month has no such day (e.g. a 5th
// Monday in a four-Monday month).
func NthWeekdayOfMonth(year int, month time.Month, wd time.Weekday, n int) (Key, bool) {
	if n == 0 || n < -1 || n > 5 {
		return "", false
	}
	if n == -1 {
		last := FromDate(year, month+1, 0)
		delta := (int(last.Weekday()) - int(wd) + 7) % 7
		return last.AddDays(-delta), true
	}
	first := FromDate(year, month, 1).NextOnOrAfter(wd)
	k := first.AddDays(7 * (n - 1))
	if _, m, _ := k.Date(); m != month {
		return "", false
	}
	return k, true
}

// OrdinalInMonth returns which occurrence of its weekday k is within its
// month (1..5), and whether it is also the last one.
func (k Key) OrdinalInMonth() (n int, last bool) {
	_, m, d := k.Date()
	n = (d-1)/7 + 1
	_, nm, _ := k.AddDays(7).Date()
	return n, nm != m
}
