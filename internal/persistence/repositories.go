package persistence

import (
	"context"
	"slices"
	"time"
)

// EventFilter narrows event queries. Recurring roots are matched on their
// start only because their occurrences may extend past any stored end.
type EventFilter struct {
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// EventRepository stores calendar events with their recurrence data.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Matches reports whether event satisfies the filter.
func (f EventFilter) Matches(event Event) bool {
	if f.StartsBefore != nil && event.Start.After(*f.StartsBefore) {
		return false
	}
	if f.EndsAfter != nil && event.Recurrence == nil {
		end := event.Start
		if event.End != nil {
			end = *event.End
		}
		if end.Before(*f.EndsAfter) {
			return false
		}
	}
	return true
}

// CloneEvent returns a deep copy of event.
func CloneEvent(event Event) Event {
	out := event
	out.End = cloneValue(event.End)
	if event.Recurrence != nil {
		rec := *event.Recurrence
		rec.EndDate = cloneValue(rec.EndDate)
		rec.DayOfMonth = cloneValue(rec.DayOfMonth)
		rec.WeekOfMonth = cloneValue(rec.WeekOfMonth)
		rec.DayOfWeek = cloneValue(rec.DayOfWeek)
		rec.WeekDays = slices.Clone(rec.WeekDays)
		rec.Exceptions = slices.Clone(rec.Exceptions)
		if len(rec.Modifications) > 0 {
			mods := make([]Modification, len(rec.Modifications))
			for i, mod := range rec.Modifications {
				mods[i] = mod
				mods[i].Patch = clonePatch(mod.Patch)
			}
			rec.Modifications = mods
		} else {
			rec.Modifications = nil
		}
		out.Recurrence = &rec
	}
	return out
}

func clonePatch(patch *EventPatch) *EventPatch {
	if patch == nil {
		return nil
	}
	return &EventPatch{
		Title:       cloneValue(patch.Title),
		Description: cloneValue(patch.Description),
		Location:    cloneValue(patch.Location),
		Start:       cloneValue(patch.Start),
		End:         cloneValue(patch.End),
		AllDay:      cloneValue(patch.AllDay),
		Category:    cloneValue(patch.Category),
		Priority:    cloneValue(patch.Priority),
		Status:      cloneValue(patch.Status),
	}
}

func cloneValue[T any](value *T) *T {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
