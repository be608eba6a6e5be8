package recurrence

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

var ordinals = [...]string{1: "first", 2: "second", 3: "third", 4: "fourth", 5: "last"}

var unitNames = map[Frequency]string{
	FrequencyDaily:   "day",
	FrequencyWeekly:  "week",
	FrequencyMonthly: "month",
	FrequencyYearly:  "year",
}

// Describe renders a pattern as a sentence such as
// "Repeats weekly on Mon, Wed until 12/31/2025".
func Describe(p Pattern) string {
	unit, ok := unitNames[p.Frequency]
	if !ok {
		return "Does not repeat"
	}

	var b strings.Builder
	b.WriteString("Repeats ")
	if p.Interval <= 1 {
		b.WriteString(string(p.Frequency))
	} else {
		fmt.Fprintf(&b, "every %d %ss", p.Interval, unit)
	}

	switch p.Frequency {
	case FrequencyWeekly:
		if len(p.WeekDays) > 0 {
			days := append([]time.Weekday(nil), p.WeekDays...)
			slices.Sort(days)
			days = slices.Compact(days)
			names := make([]string, 0, len(days))
			for _, day := range days {
				if validWeekday(day) {
					names = append(names, day.String()[:3])
				}
			}
			b.WriteString(" on ")
			b.WriteString(strings.Join(names, ", "))
		}
	case FrequencyMonthly:
		if p.MonthlyType == MonthlyByDayOfWeek && p.WeekOfMonth != nil && p.DayOfWeek != nil {
			if n := *p.WeekOfMonth; n >= 1 && n < len(ordinals) && validWeekday(*p.DayOfWeek) {
				fmt.Fprintf(&b, " on the %s %s", ordinals[n], p.DayOfWeek.String())
			}
		} else if p.DayOfMonth != nil {
			fmt.Fprintf(&b, " on day %d", *p.DayOfMonth)
		}
	}

	switch p.EndType {
	case EndOnDate:
		if p.EndDate != nil {
			b.WriteString(" until ")
			b.WriteString(p.EndDate.Format("01/02/2006"))
		}
	case EndAfterOccurrences:
		if p.Occurrences == 1 {
			b.WriteString(", 1 time")
		} else if p.Occurrences > 1 {
			fmt.Fprintf(&b, ", %d times", p.Occurrences)
		}
	}

	return b.String()
}
