package testfixtures

import (
	"time"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/recurrence"
)

var referenceTime = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures, a
// Monday morning in UTC.
func ReferenceTime() time.Time {
	return referenceTime
}

// EventFixture represents a deterministic event that can be materialised as a
// stored event or as a create request.
type EventFixture struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	Category    application.Category
	Priority    application.Priority
	Status      application.Status
	Pattern     *recurrence.Pattern
	Exceptions  []time.Time
	Overrides   []recurrence.Modification
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one hour single event starting an hour after
// ReferenceTime.
func NewEventFixture(opts ...EventOption) EventFixture {
	start := referenceTime.Add(time.Hour)
	end := start.Add(time.Hour)
	fixture := EventFixture{
		ID:        "evt-fixture",
		Title:     "Fixture event",
		Start:     start,
		End:       &end,
		Category:  application.CategoryPersonal,
		Priority:  application.PriorityMedium,
		Status:    application.StatusConfirmed,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithEventID(id string) EventOption {
	return func(f *EventFixture) { f.ID = id }
}

func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) { f.Title = title }
}

func WithEventDescription(description string) EventOption {
	return func(f *EventFixture) { f.Description = description }
}

func WithEventLocation(location string) EventOption {
	return func(f *EventFixture) { f.Location = location }
}

// WithEventTimes sets the start and end; a zero end clears it.
func WithEventTimes(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = nil
		if !end.IsZero() {
			f.End = &end
		}
	}
}

func WithEventAllDay() EventOption {
	return func(f *EventFixture) { f.AllDay = true }
}

func WithEventCategory(category application.Category) EventOption {
	return func(f *EventFixture) { f.Category = category }
}

func WithEventPriority(priority application.Priority) EventOption {
	return func(f *EventFixture) { f.Priority = priority }
}

func WithEventStatus(status application.Status) EventOption {
	return func(f *EventFixture) { f.Status = status }
}

// WithEventPattern makes the fixture a series root.
func WithEventPattern(pattern recurrence.Pattern) EventOption {
	return func(f *EventFixture) {
		clone := pattern.Clone()
		f.Pattern = &clone
	}
}

// WithEventException skips the occurrence on the calendar date of t.
func WithEventException(t time.Time) EventOption {
	return func(f *EventFixture) { f.Exceptions = append(f.Exceptions, t) }
}

// WithEventOverride records an override for the occurrence starting at original.
func WithEventOverride(original time.Time, patch recurrence.EventPatch) EventOption {
	return func(f *EventFixture) {
		f.Overrides = append(f.Overrides, recurrence.Modification{OriginalDate: original, ModifiedEvent: &patch})
	}
}

// WithEventDeletedOccurrence removes the occurrence starting at original.
func WithEventDeletedOccurrence(original time.Time) EventOption {
	return func(f *EventFixture) {
		f.Overrides = append(f.Overrides, recurrence.Modification{OriginalDate: original, IsDeleted: true})
	}
}

// DailyPattern repeats every day for count occurrences; zero count never ends.
func DailyPattern(count int) recurrence.Pattern {
	return counted(recurrence.Pattern{Frequency: recurrence.FrequencyDaily, Interval: 1}, count)
}

// WeeklyPattern repeats on days every interval weeks without an end.
func WeeklyPattern(interval int, days ...time.Weekday) recurrence.Pattern {
	return recurrence.Pattern{
		Frequency: recurrence.FrequencyWeekly,
		Interval:  interval,
		EndType:   recurrence.EndNever,
		WeekDays:  append([]time.Weekday(nil), days...),
	}
}

// MonthlyNthWeekdayPattern repeats on the nth weekday of every month;
// recurrence.LastWeekOfMonth selects the last one.
func MonthlyNthWeekdayPattern(n int, day time.Weekday, count int) recurrence.Pattern {
	return counted(recurrence.Pattern{
		Frequency:   recurrence.FrequencyMonthly,
		Interval:    1,
		MonthlyType: recurrence.MonthlyByDayOfWeek,
		WeekOfMonth: &n,
		DayOfWeek:   &day,
	}, count)
}

func counted(p recurrence.Pattern, count int) recurrence.Pattern {
	if count > 0 {
		p.EndType = recurrence.EndAfterOccurrences
		p.Occurrences = count
	} else {
		p.EndType = recurrence.EndNever
	}
	return p
}

// Application returns the fixture as an application event.
func (f EventFixture) Application() application.Event {
	event := application.Event{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Location:    f.Location,
		Start:       f.Start,
		AllDay:      f.AllDay,
		Category:    f.Category,
		Priority:    f.Priority,
		Status:      f.Status,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	if f.End != nil {
		end := *f.End
		event.End = &end
	}
	if f.Pattern != nil {
		pattern := f.Pattern.Clone()
		pattern.Exceptions = append(pattern.Exceptions, f.Exceptions...)
		rec := &recurrence.EventRecurrence{Pattern: pattern}
		rec.Modifications = append(rec.Modifications, f.Overrides...)
		event.Recurrence = rec.Clone()
	}
	return event
}

// Input returns the fixture as a create request.
func (f EventFixture) Input() application.EventInput {
	input := application.EventInput{
		Title:       f.Title,
		Description: f.Description,
		Location:    f.Location,
		Start:       f.Start,
		AllDay:      f.AllDay,
		Category:    f.Category.String(),
		Priority:    f.Priority.String(),
		Status:      f.Status.String(),
	}
	if f.End != nil {
		end := *f.End
		input.End = &end
	}
	if f.Pattern != nil {
		pattern := f.Pattern.Clone()
		pattern.Exceptions = append(pattern.Exceptions, f.Exceptions...)
		input.Recurrence = &pattern
	}
	return input
}
