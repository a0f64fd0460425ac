package recurrence

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"happenings/internal/datekey"
	"happenings/internal/model"
)

func window(start, end string) model.Window {
	return model.Window{StartKey: datekey.MustParse(start), EndKey: datekey.MustParse(end)}
}

func keys(occ []model.Occurrence) []string {
	out := make([]string, 0, len(occ))
	for _, o := range occ {
		out = append(out, string(o.DateKey))
	}
	return out
}

func TestEventDateDoesNotOverrideWeekdayPattern(t *testing.T) {
	t.Parallel()

	ev := model.Event{ID: "e1", EventDate: "2026-01-06", DayOfWeek: "Monday", RecurrenceRule: "weekly"}
	occ, err := ExpandOccurrencesForEvent(ev, window("2026-01-05", "2026-04-05"))
	require.NoError(t, err)
	require.Greater(t, len(occ), 10)
	require.Equal(t, datekey.Key("2026-01-05"), occ[0].DateKey)
	for _, o := range occ {
		require.Equal(t, time.Monday, o.DateKey.Weekday(), o.DateKey)
	}
	require.Len(t, occ, 13)
}

func TestWeeklyIncludesWindowStart(t *testing.T) {
	t.Parallel()

	ev := model.Event{DayOfWeek: "tuesdays", RecurrenceRule: "weekly"}
	occ, err := ExpandOccurrencesForEvent(ev, window("2026-01-06", "2026-01-31"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-06", "2026-01-13", "2026-01-20", "2026-01-27"}, keys(occ))
}

func TestWeeklyAcrossDSTBoundaries(t *testing.T) {
	t.Parallel()

	ev := model.Event{DayOfWeek: "Sun", RecurrenceRule: "weekly"}
	occ, err := ExpandOccurrencesForEvent(ev, window("2026-03-01", "2026-03-15"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-03-01", "2026-03-08", "2026-03-15"}, keys(occ))

	occ, err = ExpandOccurrencesForEvent(ev, window("2026-10-25", "2026-11-08"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-10-25", "2026-11-01", "2026-11-08"}, keys(occ))
}

func TestBiweeklySpacing(t *testing.T) {
	t.Parallel()

	ev := model.Event{DayOfWeek: "Friday", RecurrenceRule: "biweekly"}
	occ, err := ExpandOccurrencesForEvent(ev, window("2026-01-12", "2026-02-28"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-16", "2026-01-30", "2026-02-13", "2026-02-27"}, keys(occ))

	long, err := ExpandOccurrencesForEvent(ev, window("2026-01-01", "2026-12-31"))
	require.NoError(t, err)
	for i := 1; i < len(long); i++ {
		require.Equal(t, 14, datekey.DaysBetween(long[i-1].DateKey, long[i].DateKey))
	}
}

func TestBiweeklyPhaseFollowsEventDate(t *testing.T) {
	t.Parallel()

	ev := model.Event{EventDate: "2026-01-09", DayOfWeek: "Friday", RecurrenceRule: "every other week"}
	occ, err := ExpandOccurrencesForEvent(ev, window("2026-01-12", "2026-03-01"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-23", "2026-02-06", "2026-02-20"}, keys(occ))

	// Shifting the window keeps the same phase.
	occ, err = ExpandOccurrencesForEvent(ev, window("2026-01-20", "2026-02-10"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-23", "2026-02-06"}, keys(occ))
}

func TestMonthlyOrdinals(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ev   model.Event
		w    model.Window
		want []string
	}{
		{
			name: "second tuesday",
			ev:   model.Event{DayOfWeek: "Tuesday", RecurrenceRule: "2nd"},
			w:    window("2026-01-01", "2026-03-31"),
			want: []string{"2026-01-13", "2026-02-10", "2026-03-10"},
		},
		{
			name: "first and third",
			ev:   model.Event{DayOfWeek: "Tuesday", RecurrenceRule: "1st/3rd"},
			w:    window("2026-01-01", "2026-02-28"),
			want: []string{"2026-01-06", "2026-01-20", "2026-02-03", "2026-02-17"},
		},
		{
			name: "last friday",
			ev:   model.Event{DayOfWeek: "Friday", RecurrenceRule: "last"},
			w:    window("2026-01-01", "2026-03-31"),
			want: []string{"2026-01-30", "2026-02-27", "2026-03-27"},
		},
		{
			name: "window clips inside month",
			ev:   model.Event{DayOfWeek: "Tuesday", RecurrenceRule: "1st & 3rd"},
			w:    window("2026-01-07", "2026-02-03"),
			want: []string{"2026-01-20", "2026-02-03"},
		},
		{
			name: "monthly derives ordinal from event_date",
			ev:   model.Event{EventDate: "2026-01-13", DayOfWeek: "Tuesday", RecurrenceRule: "monthly"},
			w:    window("2026-01-01", "2026-02-28"),
			want: []string{"2026-01-13", "2026-02-10"},
		},
		{
			name: "rrule monthly",
			ev:   model.Event{RecurrenceRule: "RRULE:FREQ=MONTHLY;BYDAY=1TU,3TU"},
			w:    window("2026-01-01", "2026-01-31"),
			want: []string{"2026-01-06", "2026-01-20"},
		},
		{
			name: "fifth only in months that have one",
			ev:   model.Event{DayOfWeek: "Tuesday", RecurrenceRule: "5th"},
			w:    window("2026-01-01", "2026-03-31"),
			want: []string{"2026-03-31"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			occ, err := ExpandOccurrencesForEvent(tc.ev, tc.w)
			require.NoError(t, err)
			require.Equal(t, tc.want, keys(occ))
		})
	}
}

func TestCustomDatesFidelity(t *testing.T) {
	t.Parallel()

	ev := model.Event{
		RecurrenceRule: "custom",
		CustomDates:    []string{"2026-03-01", "2026-01-10", "2025-12-31", "2026-05-01", "2026-01-10"},
	}
	occ, err := ExpandOccurrencesForEvent(ev, window("2026-01-01", "2026-04-01"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-10", "2026-03-01"}, keys(occ))

	// Boundaries are inclusive.
	occ, err = ExpandOccurrencesForEvent(ev, window("2026-01-10", "2026-03-01"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-10", "2026-03-01"}, keys(occ))
}

func TestOneTime(t *testing.T) {
	t.Parallel()

	ev := model.Event{EventDate: "2026-02-14"}
	occ, err := ExpandOccurrencesForEvent(ev, window("2026-02-01", "2026-02-28"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-02-14"}, keys(occ))

	occ, err = ExpandOccurrencesForEvent(ev, window("2026-03-01", "2026-03-31"))
	require.NoError(t, err)
	require.Empty(t, occ)
	require.NotNil(t, occ)
}

func TestUnknownRuleDegrades(t *testing.T) {
	t.Parallel()

	ev := model.Event{EventDate: "2026-01-20", DayOfWeek: "Tuesday", RecurrenceRule: "whenever the band is in town"}
	d, err := InterpretRecurrence(ev)
	require.NoError(t, err)
	require.Equal(t, FrequencyUnknown, d.Frequency)
	require.False(t, d.IsRecurring)
	require.False(t, ShouldExpandToMultiple(d))

	occ, err := ExpandOccurrencesForEvent(ev, window("2026-01-01", "2026-12-31"))
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-20"}, keys(occ))
	require.Equal(t, "One-time", LabelFromRecurrence(d))

	d, err = InterpretRecurrence(model.Event{RecurrenceRule: "FREQ=DAILY"})
	require.NoError(t, err)
	require.Equal(t, FrequencyUnknown, d.Frequency)
	require.Equal(t, "Schedule TBD", LabelFromRecurrence(d))
}

func TestContractViolations(t *testing.T) {
	t.Parallel()

	_, err := ExpandOccurrencesForEvent(model.Event{EventDate: "01/06/2026"}, window("2026-01-01", "2026-01-31"))
	require.True(t, errors.Is(err, datekey.ErrInvalidKey))

	_, err = ExpandOccurrencesForEvent(model.Event{CustomDates: []string{"2026-13-01"}}, window("2026-01-01", "2026-01-31"))
	require.True(t, errors.Is(err, datekey.ErrInvalidKey))

	_, err = ExpandOccurrencesForEvent(model.Event{EventDate: "2026-01-06"}, window("2026-02-01", "2026-01-01"))
	require.True(t, errors.Is(err, ErrInvalidWindow))

	_, err = ExpandOccurrencesForEvent(model.Event{EventDate: "2026-01-06"}, model.Window{StartKey: "today", EndKey: "2026-01-01"})
	require.True(t, errors.Is(err, ErrInvalidWindow))
}

func TestInterpretRecurrence(t *testing.T) {
	t.Parallel()

	d, err := InterpretRecurrence(model.Event{EventDate: "2026-01-06", DayOfWeek: "Monday", RecurrenceRule: "weekly"})
	require.NoError(t, err)
	require.True(t, d.IsRecurring)
	require.Equal(t, FrequencyWeekly, d.Frequency)
	require.Equal(t, "Monday", d.DayName)
	require.Equal(t, time.Monday, *d.DayOfWeek)
	require.Equal(t, 1, d.Interval)
	require.Empty(t, d.Anchor, "tuesday event_date must not anchor a monday series")

	d, err = InterpretRecurrence(model.Event{DayOfWeek: "Thursday"})
	require.NoError(t, err)
	require.Equal(t, FrequencyWeekly, d.Frequency)

	d, err = InterpretRecurrence(model.Event{EventDate: "2026-01-08", RecurrenceRule: "biweekly"})
	require.NoError(t, err)
	require.Equal(t, FrequencyBiweekly, d.Frequency)
	require.Equal(t, "Thursday", d.DayName)
	require.Equal(t, datekey.Key("2026-01-08"), d.Anchor)

	d, err = InterpretRecurrence(model.Event{DayOfWeek: "Tuesday", RecurrenceRule: "last/2nd/last"})
	require.NoError(t, err)
	require.Equal(t, []int{2, OrdinalLast}, d.Ordinals)

	d, err = InterpretRecurrence(model.Event{EventDate: "2026-03-03"})
	require.NoError(t, err)
	require.Equal(t, FrequencyOneTime, d.Frequency)
	require.False(t, d.IsRecurring)
	require.Equal(t, datekey.Key("2026-03-03"), *d.ExplicitDate)

	d, err = InterpretRecurrence(model.Event{CustomDates: []string{"2026-01-02", "2026-01-01"}})
	require.NoError(t, err)
	require.Equal(t, FrequencyCustom, d.Frequency)
	require.True(t, d.IsRecurring)
	require.Equal(t, []datekey.Key{"2026-01-01", "2026-01-02"}, d.CustomDates)

	d, err = InterpretRecurrence(model.Event{RecurrenceRule: "custom", EventDate: "2026-05-05"})
	require.NoError(t, err)
	require.Equal(t, FrequencyOneTime, d.Frequency)

	d, err = InterpretRecurrence(model.Event{RecurrenceRule: "weekly"})
	require.NoError(t, err)
	require.Equal(t, FrequencyUnknown, d.Frequency)
}

func TestLabelFromRecurrence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ev   model.Event
		want string
	}{
		{model.Event{DayOfWeek: "monday", RecurrenceRule: "weekly"}, "Every Monday"},
		{model.Event{DayOfWeek: "Fri", RecurrenceRule: "biweekly"}, "Every Other Friday"},
		{model.Event{DayOfWeek: "Tuesday", RecurrenceRule: "2nd"}, "2nd Tuesday of the Month"},
		{model.Event{DayOfWeek: "Tuesday", RecurrenceRule: "1st/3rd"}, "1st & 3rd Tuesday of the Month"},
		{model.Event{DayOfWeek: "Friday", RecurrenceRule: "last"}, "Last Friday of the Month"},
		{model.Event{RecurrenceRule: "FREQ=WEEKLY;INTERVAL=3;BYDAY=WE"}, "Every 3 Weeks on Wednesday"},
		{model.Event{EventDate: "2026-01-06"}, "One-time"},
		{model.Event{CustomDates: []string{"2026-01-01", "2026-02-01"}}, "Custom Dates"},
		{model.Event{}, "Schedule TBD"},
	}
	for _, tc := range cases {
		d, err := InterpretRecurrence(tc.ev)
		require.NoError(t, err)
		require.Equal(t, tc.want, LabelFromRecurrence(d))
	}
}

func TestLabelAgreesWithExpansion(t *testing.T) {
	t.Parallel()

	events := []model.Event{
		{DayOfWeek: "Monday", RecurrenceRule: "weekly", EventDate: "2026-01-06"},
		{DayOfWeek: "Friday", RecurrenceRule: "biweekly"},
		{DayOfWeek: "Wednesday", RecurrenceRule: "FREQ=WEEKLY;INTERVAL=3"},
		{DayOfWeek: "Tuesday", RecurrenceRule: "2nd"},
		{DayOfWeek: "Saturday", RecurrenceRule: "1st/3rd"},
		{DayOfWeek: "Thursday", RecurrenceRule: "last"},
	}
	w := window("2026-01-01", "2026-12-31")

	for _, ev := range events {
		d, err := InterpretRecurrence(ev)
		require.NoError(t, err)
		label := LabelFromRecurrence(d)
		require.Contains(t, label, d.DayName)

		occ, err := ExpandDescriptor(d, w, Options{})
		require.NoError(t, err)
		require.NotEmpty(t, occ, label)

		for i, o := range occ {
			require.Equal(t, *d.DayOfWeek, o.DateKey.Weekday(), "%s: %s", label, o.DateKey)
			if i > 0 && d.Frequency != FrequencyMonthly {
				require.Equal(t, 7*d.Interval, datekey.DaysBetween(occ[i-1].DateKey, o.DateKey), label)
			}
			if d.Frequency == FrequencyMonthly {
				n, last := o.DateKey.OrdinalInMonth()
				ok := false
				for _, want := range d.Ordinals {
					if want == n || (want == OrdinalLast && last) {
						ok = true
					}
				}
				require.True(t, ok, "%s: %s", label, o.DateKey)
				require.True(t, strings.Contains(label, "of the Month"))
			}
		}

		if d.Frequency == FrequencyMonthly {
			require.Len(t, occ, 12*len(d.Ordinals), label)
		}
	}
}

func TestExpansionIsIdempotent(t *testing.T) {
	t.Parallel()

	ev := model.Event{DayOfWeek: "Saturday", RecurrenceRule: "1st/3rd"}
	w := window("2026-01-01", "2026-06-30")
	a, err := ExpandOccurrencesForEvent(ev, w)
	require.NoError(t, err)
	b, err := ExpandOccurrencesForEvent(ev, w)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestMaxOccurrencesCap(t *testing.T) {
	t.Parallel()

	ev := model.Event{DayOfWeek: "Monday", RecurrenceRule: "weekly"}
	occ, err := ExpandWithOptions(ev, window("2026-01-01", "2026-12-31"), Options{MaxOccurrences: 3, Location: time.UTC})
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-05", "2026-01-12", "2026-01-19"}, keys(occ))
}

func TestShouldExpandToMultiple(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		ev   model.Event
		want bool
	}{
		{model.Event{DayOfWeek: "Monday", RecurrenceRule: "weekly"}, true},
		{model.Event{DayOfWeek: "Monday", RecurrenceRule: "2nd"}, true},
		{model.Event{EventDate: "2026-01-06"}, false},
		{model.Event{CustomDates: []string{"2026-01-06"}}, false},
		{model.Event{CustomDates: []string{"2026-01-06", "2026-01-07"}}, true},
	} {
		d, err := InterpretRecurrence(tc.ev)
		require.NoError(t, err)
		require.Equal(t, tc.want, ShouldExpandToMultiple(d), "%+v", tc.ev)
	}
}

func TestRRuleSeriesBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   model.Event
		w    model.Window
		want []string
	}{
		{
			name: "count",
			ev:   model.Event{EventDate: "2026-01-05", RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO;COUNT=2"},
			w:    window("2026-01-01", "2026-03-31"),
			want: []string{"2026-01-05", "2026-01-12"},
		},
		{
			name: "count counts from dtstart not from the window",
			ev:   model.Event{EventDate: "2026-01-05", RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO;COUNT=3"},
			w:    window("2026-01-10", "2026-03-31"),
			want: []string{"2026-01-12", "2026-01-19"},
		},
		{
			name: "count exhausted before window",
			ev:   model.Event{EventDate: "2026-01-05", RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO;COUNT=3"},
			w:    window("2026-02-01", "2026-03-31"),
			want: []string{},
		},
		{
			name: "until utc date-time",
			ev:   model.Event{EventDate: "2026-01-05", RecurrenceRule: "RRULE:FREQ=WEEKLY;BYDAY=MO;UNTIL=20260115T000000Z"},
			w:    window("2026-01-01", "2026-03-31"),
			want: []string{"2026-01-05", "2026-01-12"},
		},
		{
			name: "until date is inclusive",
			ev:   model.Event{EventDate: "2026-01-05", RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO;UNTIL=20260119"},
			w:    window("2026-01-01", "2026-03-31"),
			want: []string{"2026-01-05", "2026-01-12", "2026-01-19"},
		},
		{
			name: "nothing before dtstart",
			ev:   model.Event{EventDate: "2026-02-02", RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO"},
			w:    window("2026-01-01", "2026-02-28"),
			want: []string{"2026-02-02", "2026-02-09", "2026-02-16", "2026-02-23"},
		},
		{
			name: "monthly count",
			ev:   model.Event{EventDate: "2026-01-13", RecurrenceRule: "FREQ=MONTHLY;BYDAY=2TU;COUNT=2"},
			w:    window("2026-01-01", "2026-12-31"),
			want: []string{"2026-01-13", "2026-02-10"},
		},
		{
			name: "monthly every weekday",
			ev:   model.Event{RecurrenceRule: "FREQ=MONTHLY;BYDAY=TU"},
			w:    window("2026-03-01", "2026-03-31"),
			want: []string{"2026-03-03", "2026-03-10", "2026-03-17", "2026-03-24", "2026-03-31"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			occ, err := ExpandOccurrencesForEvent(tc.ev, tc.w)
			require.NoError(t, err)
			require.Equal(t, tc.want, keys(occ))
		})
	}
}

func TestRRuleBoundsOnDescriptor(t *testing.T) {
	t.Parallel()

	d, err := InterpretRecurrence(model.Event{EventDate: "2026-01-05", RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO;UNTIL=20260115T000000Z"})
	require.NoError(t, err)
	require.Equal(t, datekey.Key("2026-01-05"), d.SeriesStart)
	require.NotNil(t, d.Until)
	require.Equal(t, datekey.Key("2026-01-14"), *d.Until)

	d, err = InterpretRecurrence(model.Event{EventDate: "2026-01-05", RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO;COUNT=1"})
	require.NoError(t, err)
	require.Equal(t, 1, d.Count)
	require.False(t, ShouldExpandToMultiple(d))

	// COUNT needs a DTSTART to count from.
	d, err = InterpretRecurrence(model.Event{DayOfWeek: "Monday", RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO;COUNT=2"})
	require.NoError(t, err)
	require.Equal(t, FrequencyUnknown, d.Frequency)
}

func TestRRuleUnsupportedPartsAreUnknown(t *testing.T) {
	t.Parallel()

	rules := []string{
		"FREQ=MONTHLY;BYMONTHDAY=15",
		"FREQ=MONTHLY",
		"FREQ=YEARLY;BYMONTH=6;BYDAY=1SA",
		"FREQ=WEEKLY;BYDAY=MO;BYMONTH=6",
		"FREQ=WEEKLY;BYDAY=MO;BYHOUR=19",
		"FREQ=WEEKLY;BYDAY=MO;BYSETPOS=1",
		"FREQ=WEEKLY;BYDAY=MO,WE",
		"FREQ=WEEKLY;BYDAY=1MO",
		"FREQ=MONTHLY;BYDAY=1TU;BYSETPOS=1",
		"FREQ=MONTHLY;INTERVAL=2;BYDAY=1TU",
		"FREQ=MONTHLY;BYYEARDAY=100",
		"FREQ=WEEKLY;BYWEEKNO=20",
		"FREQ=DAILY",
	}

	for _, rule := range rules {
		ev := model.Event{EventDate: "2026-01-05", DayOfWeek: "Monday", RecurrenceRule: rule}
		d, err := InterpretRecurrence(ev)
		require.NoError(t, err, rule)
		require.Equal(t, FrequencyUnknown, d.Frequency, rule)
		require.False(t, ShouldExpandToMultiple(d), rule)
		require.Equal(t, "One-time", LabelFromRecurrence(d), rule)

		occ, err := ExpandOccurrencesForEvent(ev, window("2026-01-01", "2026-03-31"))
		require.NoError(t, err, rule)
		require.Equal(t, []string{"2026-01-05"}, keys(occ), rule)
	}
}
