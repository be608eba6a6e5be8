package recurrence

import (
	"time"

	"github.com/samber/mo"
)

// Frequency represents the unit a pattern repeats in.
type Frequency string

const (
	// FrequencyDaily repeats every N days.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly repeats on selected weekdays every N weeks.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly repeats on a day of the month or an nth weekday every N months.
	FrequencyMonthly Frequency = "monthly"
	// FrequencyYearly repeats on the anniversary of the series start every N years.
	FrequencyYearly Frequency = "yearly"
)

// EndType selects how a series terminates.
type EndType string

const (
	EndNever            EndType = "never"
	EndOnDate           EndType = "onDate"
	EndAfterOccurrences EndType = "afterOccurrences"
)

// MonthlyType selects how monthly patterns pick their day.
type MonthlyType string

const (
	MonthlyByDayOfMonth MonthlyType = "dayOfMonth"
	MonthlyByDayOfWeek  MonthlyType = "dayOfWeek"
)

// LastWeekOfMonth is the WeekOfMonth value that selects the last matching
// weekday of a month.
const LastWeekOfMonth = 5

// Pattern describes how an event repeats. EndDate and Exceptions are compared
// by their calendar date only.
type Pattern struct {
	Frequency   Frequency
	Interval    int
	EndType     EndType
	EndDate     *time.Time
	Occurrences int
	WeekDays    []time.Weekday
	MonthlyType MonthlyType
	DayOfMonth  *int
	WeekOfMonth *int
	DayOfWeek   *time.Weekday
	Exceptions  []time.Time
	// Timezone is advisory and never used in date arithmetic.
	Timezone string
}

// Clone returns a deep copy of the pattern.
func (p Pattern) Clone() Pattern {
	out := p
	out.EndDate = cloneTime(p.EndDate)
	out.DayOfMonth = cloneInt(p.DayOfMonth)
	out.WeekOfMonth = cloneInt(p.WeekOfMonth)
	if p.DayOfWeek != nil {
		day := *p.DayOfWeek
		out.DayOfWeek = &day
	}
	if len(p.WeekDays) > 0 {
		out.WeekDays = append([]time.Weekday(nil), p.WeekDays...)
	}
	if len(p.Exceptions) > 0 {
		out.Exceptions = append([]time.Time(nil), p.Exceptions...)
	}
	return out
}

// EventRecurrence attaches a pattern to a concrete event. Series roots carry
// Modifications; materialized instances carry ParentEventID and InstanceDate.
type EventRecurrence struct {
	Pattern
	ParentEventID string
	InstanceDate  *time.Time
	Modifications []Modification
}

// IsInstance reports whether the recurrence belongs to a materialized occurrence.
func (r *EventRecurrence) IsInstance() bool {
	return r != nil && r.ParentEventID != ""
}

// Clone returns a deep copy of the recurrence.
func (r *EventRecurrence) Clone() *EventRecurrence {
	if r == nil {
		return nil
	}
	out := &EventRecurrence{
		Pattern:       r.Pattern.Clone(),
		ParentEventID: r.ParentEventID,
		InstanceDate:  cloneTime(r.InstanceDate),
	}
	if len(r.Modifications) > 0 {
		out.Modifications = make([]Modification, len(r.Modifications))
		for i, mod := range r.Modifications {
			out.Modifications[i] = mod.clone()
		}
	}
	return out
}

// Modification is a sparse override for one occurrence of a series, keyed by
// the occurrence's original start.
type Modification struct {
	OriginalDate  time.Time
	ModifiedEvent *EventPatch
	IsDeleted     bool
}

func (m Modification) clone() Modification {
	out := m
	if m.ModifiedEvent != nil {
		patch := *m.ModifiedEvent
		out.ModifiedEvent = &patch
	}
	return out
}

// EventPatch holds field level overrides. Absent options leave the target
// field untouched.
type EventPatch struct {
	Title       mo.Option[string]
	Description mo.Option[string]
	Location    mo.Option[string]
	Start       mo.Option[time.Time]
	End         mo.Option[time.Time]
	AllDay      mo.Option[bool]
	Category    mo.Option[string]
	Priority    mo.Option[string]
	Status      mo.Option[string]
}

// IsEmpty reports whether the patch overrides nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Title.IsAbsent() && p.Description.IsAbsent() && p.Location.IsAbsent() &&
		p.Start.IsAbsent() && p.End.IsAbsent() && p.AllDay.IsAbsent() &&
		p.Category.IsAbsent() && p.Priority.IsAbsent() && p.Status.IsAbsent()
}

// Merge layers other on top of p. Fields present in other win.
func (p EventPatch) Merge(other EventPatch) EventPatch {
	out := p
	if other.Title.IsPresent() {
		out.Title = other.Title
	}
	if other.Description.IsPresent() {
		out.Description = other.Description
	}
	if other.Location.IsPresent() {
		out.Location = other.Location
	}
	if other.Start.IsPresent() {
		out.Start = other.Start
	}
	if other.End.IsPresent() {
		out.End = other.End
	}
	if other.AllDay.IsPresent() {
		out.AllDay = other.AllDay
	}
	if other.Category.IsPresent() {
		out.Category = other.Category
	}
	if other.Priority.IsPresent() {
		out.Priority = other.Priority
	}
	if other.Status.IsPresent() {
		out.Status = other.Status
	}
	return out
}

// Apply overwrites the event fields present in the patch.
func (p EventPatch) Apply(event *Event) {
	if event == nil {
		return
	}
	if v, ok := p.Title.Get(); ok {
		event.Title = v
	}
	if v, ok := p.Description.Get(); ok {
		event.Description = v
	}
	if v, ok := p.Location.Get(); ok {
		event.Location = v
	}
	if v, ok := p.Start.Get(); ok {
		event.Start = v
	}
	if v, ok := p.End.Get(); ok {
		end := v
		event.End = &end
	}
	if v, ok := p.AllDay.Get(); ok {
		event.AllDay = v
	}
	if v, ok := p.Category.Get(); ok {
		event.Category = v
	}
	if v, ok := p.Priority.Get(); ok {
		event.Priority = v
	}
	if v, ok := p.Status.Get(); ok {
		event.Status = v
	}
}

// Event is the display event the engine expands and clones. Category, Priority
// and Status are caller defined labels copied verbatim.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	Category    string
	Priority    string
	Status      string
	Recurrence  *EventRecurrence
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	out.End = cloneTime(e.End)
	out.Recurrence = e.Recurrence.Clone()
	return out
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
