package recurrence

import "time"

// sweepHorizonYears caps sweeps for open ended and occurrence counted series.
const sweepHorizonYears = 2

// Instance is one generated occurrence of a series.
type Instance struct {
	Date        time.Time
	EndDate     *time.Time
	IsException bool
	IsModified  bool
}

// Engine expands recurrence patterns into occurrences. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates wall clock dates in loc. When
// loc is nil every event is evaluated in the location of its own start.
func NewEngine(loc *time.Location) *Engine {
	return &Engine{location: loc}
}

var defaultEngine = NewEngine(nil)

// GenerateInstances expands pattern for base within [rangeStart, rangeEnd]
// using an engine bound to each event's own location.
func GenerateInstances(base Event, pattern Pattern, rangeStart, rangeEnd time.Time) []Instance {
	return defaultEngine.GenerateInstances(base, pattern, rangeStart, rangeEnd)
}

// GenerateInstances returns the occurrences of pattern whose calendar date
// falls within [rangeStart, rangeEnd]. The sweep always begins at the series
// start so that occurrence counting does not depend on the window. Invalid
// patterns produce no instances.
func (e *Engine) GenerateInstances(base Event, pattern Pattern, rangeStart, rangeEnd time.Time) []Instance {
	if !Validate(pattern).IsValid || base.Start.IsZero() {
		return nil
	}

	loc := e.zone(base)
	start := base.Start.In(loc)
	var duration time.Duration
	hasEnd := base.End != nil
	if hasEnd {
		duration = base.End.Sub(base.Start)
	}

	windowStart := dateOf(rangeStart.In(loc))
	windowEnd := dateOf(rangeEnd.In(loc))
	if windowEnd.Before(windowStart) {
		return nil
	}

	limit := dateOf(rangeEnd.In(loc)).AddDate(sweepHorizonYears, 0, 0)
	if pattern.EndType == EndOnDate {
		limit = wallDate(*pattern.EndDate, loc)
	}
	if windowEnd.Before(limit) {
		limit = windowEnd
	}

	target := 0
	if pattern.EndType == EndAfterOccurrences {
		target = pattern.Occurrences
	}
	exceptions := exceptionSet(pattern.Exceptions)

	var (
		instances []Instance
		count     int
	)
	visit := func(candidate time.Time) bool {
		day := dateOf(candidate)
		if day.After(limit) {
			return false
		}
		if _, skip := exceptions[dayKey(candidate)]; skip {
			return true
		}
		count++
		if !day.Before(windowStart) {
			inst := Instance{Date: candidate}
			if hasEnd {
				end := candidate.Add(duration)
				inst.EndDate = &end
			}
			instances = append(instances, inst)
		}
		return target == 0 || count < target
	}

	sweep(start, pattern, visit)
	return instances
}

// sweep walks candidate occurrences in chronological order, calling visit
// until it returns false.
func sweep(start time.Time, p Pattern, visit func(time.Time) bool) {
	switch p.Frequency {
	case FrequencyDaily:
		for cursor := start; ; cursor = cursor.AddDate(0, 0, p.Interval) {
			if !visit(cursor) {
				return
			}
		}
	case FrequencyWeekly:
		weekAnchor := dateOf(start).AddDate(0, 0, -int(start.Weekday()))
		sweepDays(start, func(cursor time.Time) bool { return matchesWeekly(cursor, start, weekAnchor, p) }, visit)
	case FrequencyMonthly:
		if p.MonthlyType == MonthlyByDayOfWeek {
			sweepDays(start, func(cursor time.Time) bool { return matchesMonthlyWeekday(cursor, start, p) }, visit)
			return
		}
		sweepMonthDays(start, p, visit)
	case FrequencyYearly:
		for step := 0; ; step += p.Interval {
			candidate := time.Date(start.Year()+step, start.Month(), start.Day(), start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
			if candidate.Day() != start.Day() {
				// Feb 29 in a common year.
				if dateOf(candidate).After(horizonGuard(start)) {
					return
				}
				continue
			}
			if !visit(candidate) {
				return
			}
		}
	}
}

// sweepDays advances one day at a time and visits the days accepted by match.
func sweepDays(start time.Time, match func(time.Time) bool, visit func(time.Time) bool) {
	guard := horizonGuard(start)
	for cursor := start; !dateOf(cursor).After(guard); cursor = cursor.AddDate(0, 0, 1) {
		if match(cursor) && !visit(cursor) {
			return
		}
	}
}

// sweepMonthDays steps month by month from the start month so that short
// months are skipped rather than overflowing into the next month.
func sweepMonthDays(start time.Time, p Pattern, visit func(time.Time) bool) {
	day := start.Day()
	if p.DayOfMonth != nil {
		day = *p.DayOfMonth
	}
	guard := horizonGuard(start)
	for step := 0; ; step += p.Interval {
		first := time.Date(start.Year(), start.Month()+time.Month(step), 1, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
		if dateOf(first).After(guard) {
			return
		}
		if day > daysIn(first) {
			continue
		}
		candidate := first.AddDate(0, 0, day-1)
		if dateOf(candidate).Before(dateOf(start)) {
			continue
		}
		if !visit(candidate) {
			return
		}
	}
}

// horizonGuard bounds sweeps whose matcher could skip every candidate, such
// as a day of month that no month in the interval cycle has.
func horizonGuard(start time.Time) time.Time {
	return dateOf(start).AddDate(400, 0, 0)
}

func matchesWeekly(candidate, start, weekAnchor time.Time, p Pattern) bool {
	if !weekdaySelected(candidate.Weekday(), start.Weekday(), p.WeekDays) {
		return false
	}
	weekIndex := daysBetween(weekAnchor, candidate) / 7
	return weekIndex%p.Interval == 0
}

func weekdaySelected(day, startDay time.Weekday, selected []time.Weekday) bool {
	if len(selected) == 0 {
		return day == startDay
	}
	for _, want := range selected {
		if want == day {
			return true
		}
	}
	return false
}

func matchesMonthlyWeekday(candidate, start time.Time, p Pattern) bool {
	if p.DayOfWeek == nil || p.WeekOfMonth == nil {
		return false
	}
	if candidate.Weekday() != *p.DayOfWeek {
		return false
	}
	monthIndex := (candidate.Year()-start.Year())*12 + int(candidate.Month()) - int(start.Month())
	if monthIndex%p.Interval != 0 {
		return false
	}
	if *p.WeekOfMonth == LastWeekOfMonth {
		return candidate.Day()+7 > daysIn(candidate)
	}
	return weekOfMonth(candidate) == *p.WeekOfMonth
}

// weekOfMonth numbers the calendar rows of a month starting at 1, with rows
// beginning on Sunday.
func weekOfMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	offset := int(first.Weekday())
	return (t.Day() + offset + 6) / 7
}

func (e *Engine) zone(base Event) *time.Location {
	if e != nil && e.location != nil {
		return e.location
	}
	if loc := base.Start.Location(); loc != nil {
		return loc
	}
	return time.UTC
}

func exceptionSet(exceptions []time.Time) map[string]struct{} {
	if len(exceptions) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(exceptions))
	for _, ex := range exceptions {
		set[dayKey(ex)] = struct{}{}
	}
	return set
}

// dayKey identifies a calendar date by the wall clock date of t.
func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// wallDate reinterprets the calendar date of t in loc.
func wallDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
