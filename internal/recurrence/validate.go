package recurrence

import "time"

// Validation messages reported by Validate.
const (
	MsgIntervalTooSmall      = "interval must be at least 1"
	MsgUnknownFrequency      = "frequency must be one of daily, weekly, monthly, yearly"
	MsgUnknownEndType        = "end type must be one of never, onDate, afterOccurrences"
	MsgEndDateRequired       = "end date is required when the series ends on a date"
	MsgOccurrencesRequired   = "occurrences must be at least 1 when the series ends after a number of occurrences"
	MsgUnknownMonthlyType    = "monthly type must be one of dayOfMonth, dayOfWeek"
	MsgDayOfMonthRange       = "day of month must be between 1 and 31"
	MsgWeekOfMonthRequired   = "week of month and day of week are required for monthly patterns on a weekday"
	MsgWeekOfMonthRange      = "week of month must be between 1 and 5"
	MsgWeekdayRange          = "weekdays must be between 0 (Sunday) and 6 (Saturday)"
	MsgWeeklyFallbackWarning = "no weekdays selected; the series repeats on the weekday of its start"
)

// ValidationResult collects every violated rule of a pattern. Warnings never
// affect IsValid.
type ValidationResult struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) fail(message string) {
	r.Errors = append(r.Errors, message)
}

func (r *ValidationResult) warn(message string) {
	r.Warnings = append(r.Warnings, message)
}

// Validate checks a pattern and accumulates every problem instead of stopping
// at the first one.
func Validate(p Pattern) ValidationResult {
	var result ValidationResult

	if p.Interval < 1 {
		result.fail(MsgIntervalTooSmall)
	}

	switch p.Frequency {
	case FrequencyDaily, FrequencyYearly:
	case FrequencyWeekly:
		if len(p.WeekDays) == 0 {
			result.warn(MsgWeeklyFallbackWarning)
		}
		for _, day := range p.WeekDays {
			if !validWeekday(day) {
				result.fail(MsgWeekdayRange)
				break
			}
		}
	case FrequencyMonthly:
		validateMonthly(p, &result)
	default:
		result.fail(MsgUnknownFrequency)
	}

	switch p.EndType {
	case EndNever:
	case EndOnDate:
		if p.EndDate == nil || p.EndDate.IsZero() {
			result.fail(MsgEndDateRequired)
		}
	case EndAfterOccurrences:
		if p.Occurrences < 1 {
			result.fail(MsgOccurrencesRequired)
		}
	default:
		result.fail(MsgUnknownEndType)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func validateMonthly(p Pattern, result *ValidationResult) {
	switch p.MonthlyType {
	case MonthlyByDayOfMonth, "":
		// An unset monthly type means day of month; a missing day falls back
		// to the start's day.
		if p.DayOfMonth != nil && (*p.DayOfMonth < 1 || *p.DayOfMonth > 31) {
			result.fail(MsgDayOfMonthRange)
		}
		if p.MonthlyType == MonthlyByDayOfMonth && p.DayOfMonth == nil {
			result.fail(MsgDayOfMonthRange)
		}
	case MonthlyByDayOfWeek:
		if p.WeekOfMonth == nil || p.DayOfWeek == nil {
			result.fail(MsgWeekOfMonthRequired)
			return
		}
		if *p.WeekOfMonth < 1 || *p.WeekOfMonth > LastWeekOfMonth {
			result.fail(MsgWeekOfMonthRange)
		}
		if !validWeekday(*p.DayOfWeek) {
			result.fail(MsgWeekdayRange)
		}
	default:
		result.fail(MsgUnknownMonthlyType)
	}
}

func validWeekday(day time.Weekday) bool {
	return day >= time.Sunday && day <= time.Saturday
}
