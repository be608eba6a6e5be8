package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrInvalidPattern is returned when a pattern fails validation.
var ErrInvalidPattern = errors.New("recurrence: invalid pattern")

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// RRuleOption converts a pattern into an RFC 5545 rule option anchored at
// dtstart. Weeks start on Sunday. Monthly weekday patterns select calendar
// rows, so rows one to four map to the seven month days the row can hold and
// the last row maps to the last weekday of the month. Exceptions are not part
// of the rule.
func RRuleOption(p Pattern, dtstart time.Time) (rrule.ROption, error) {
	if result := Validate(p); !result.IsValid {
		return rrule.ROption{}, fmt.Errorf("%w: %s", ErrInvalidPattern, strings.Join(result.Errors, "; "))
	}

	opt := rrule.ROption{
		Interval: p.Interval,
		Dtstart:  dtstart,
		Wkst:     rrule.SU,
	}

	switch p.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		days := p.WeekDays
		if len(days) == 0 {
			days = []time.Weekday{dtstart.Weekday()}
		}
		for _, day := range days {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[day])
		}
	case FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		if p.MonthlyType == MonthlyByDayOfWeek {
			weekday := rruleWeekdays[*p.DayOfWeek]
			if *p.WeekOfMonth == LastWeekOfMonth {
				opt.Byweekday = []rrule.Weekday{weekday.Nth(-1)}
			} else {
				opt.Byweekday = []rrule.Weekday{weekday}
				opt.Bymonthday = weekRowMonthDays(*p.WeekOfMonth, *p.DayOfWeek)
			}
		} else {
			day := dtstart.Day()
			if p.DayOfMonth != nil {
				day = *p.DayOfMonth
			}
			opt.Bymonthday = []int{day}
		}
	case FrequencyYearly:
		opt.Freq = rrule.YEARLY
	}

	switch p.EndType {
	case EndOnDate:
		end := wallDate(*p.EndDate, dtstart.Location()).AddDate(0, 0, 1).Add(-time.Second)
		opt.Until = end.UTC()
	case EndAfterOccurrences:
		opt.Count = p.Occurrences
	}

	return opt, nil
}

// weekRowMonthDays lists the month days on which weekday can fall in calendar
// row n, across every possible weekday of the first of the month.
func weekRowMonthDays(n int, weekday time.Weekday) []int {
	base := 7*(n-1) + int(weekday)
	days := make([]int, 0, 7)
	for day := base - 5; day <= base+1; day++ {
		if day >= 1 && day <= 31 {
			days = append(days, day)
		}
	}
	return days
}

// ToRRule renders the RRULE value (without DTSTART) for a pattern.
func ToRRule(p Pattern, dtstart time.Time) (string, error) {
	opt, err := RRuleOption(p, dtstart)
	if err != nil {
		return "", err
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("building rule: %w", err)
	}
	return rule.OrigOptions.RRuleString(), nil
}
