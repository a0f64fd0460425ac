package recurrence

import (
	"fmt"
	"strings"
)

// OrdinalLabel renders a monthly ordinal ("1st", "2nd", "Last").
func OrdinalLabel(n int) string {
	switch n {
	case OrdinalLast:
		return "Last"
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	default:
		return fmt.Sprintf("%dth", n)
	}
}

// LabelFromRecurrence renders a human-readable schedule for d. It reads
// only the fields the expander uses, so "Every Monday" always describes a
// set of Mondays.
func LabelFromRecurrence(d Descriptor) string {
	switch d.Frequency {
	case FrequencyWeekly, FrequencyBiweekly:
		if d.DayName == "" {
			return "Schedule TBD"
		}
		switch {
		case d.Interval <= 1:
			return "Every " + d.DayName
		case d.Interval == 2:
			return "Every Other " + d.DayName
		default:
			return fmt.Sprintf("Every %d Weeks on %s", d.Interval, d.DayName)
		}
	case FrequencyMonthly:
		if d.DayName == "" || len(d.Ordinals) == 0 {
			return "Schedule TBD"
		}
		parts := make([]string, 0, len(d.Ordinals))
		for _, n := range d.Ordinals {
			parts = append(parts, OrdinalLabel(n))
		}
		return strings.Join(parts, " & ") + " " + d.DayName + " of the Month"
	case FrequencyCustom:
		if len(d.CustomDates) == 1 {
			return "One-time"
		}
		return "Custom Dates"
	case FrequencyOneTime:
		return "One-time"
	default:
		if d.ExplicitDate != nil {
			return "One-time"
		}
		return "Schedule TBD"
	}
}
