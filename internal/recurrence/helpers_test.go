package recurrence

import "time"

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func weekdayPtr(v time.Weekday) *time.Weekday { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func daily(interval int) Pattern {
	return Pattern{Frequency: FrequencyDaily, Interval: interval, EndType: EndNever}
}

func instanceDates(instances []Instance) []string {
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Date.Format(time.DateOnly))
	}
	return out
}
