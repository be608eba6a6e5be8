package application

import (
	"time"

	"github.com/example/personal-calendar/internal/recurrence"
)

// Event is a stored series root, a single event, or a materialized
// occurrence of a series.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	Category    Category
	Priority    Priority
	Status      Status
	Recurrence  *recurrence.EventRecurrence
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsRecurring reports whether the event is a series root.
func (e Event) IsRecurring() bool {
	return e.Recurrence != nil && !e.Recurrence.IsInstance()
}

// IsInstance reports whether the event is a materialized occurrence.
func (e Event) IsInstance() bool {
	return e.Recurrence.IsInstance()
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	if e.End != nil {
		end := *e.End
		out.End = &end
	}
	out.Recurrence = e.Recurrence.Clone()
	return out
}

// WithPatch returns a copy of the event with the patch fields layered over
// it. Unknown enum labels in the patch keep the current value.
func (e Event) WithPatch(patch recurrence.EventPatch) Event {
	rendered := toEngineEvent(e.Clone())
	patch.Apply(&rendered)
	return fromEngineEvent(rendered, e)
}

// EventInput captures caller provided event fields. Empty enum labels fall
// back to personal, medium and confirmed.
type EventInput struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	Category    string
	Priority    string
	Status      string
	Recurrence  *recurrence.Pattern
}

// Scope selects which occurrences of a series an edit or delete touches.
type Scope string

const (
	ScopeThis          Scope = "this"
	ScopeThisAndFuture Scope = "thisAndFuture"
	ScopeAll           Scope = "all"
)

// ParseScope resolves a scope name. An empty value selects ScopeAll.
func ParseScope(value string) (Scope, error) {
	switch Scope(value) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeThis, ScopeThisAndFuture:
		return Scope(value), nil
	}
	return "", ErrInvalidScope
}

// UpdateEventParams wraps the data required to edit an event or occurrence.
// Recurrence replaces the series pattern; ClearRecurrence turns a series back
// into a single event. Both are only honoured for whole-series edits.
type UpdateEventParams struct {
	EventID         string
	Scope           Scope
	Patch           recurrence.EventPatch
	Recurrence      *recurrence.Pattern
	ClearRecurrence bool
}

// DeleteEventParams wraps the data required to delete an event or occurrence.
type DeleteEventParams struct {
	EventID string
	Scope   Scope
}

// SearchParams bounds a text search. Zero bounds fall back to the configured
// horizon around now.
type SearchParams struct {
	Query string
	Start time.Time
	End   time.Time
}

// ConflictWarning describes an existing event that overlaps a created or
// edited one. Warnings never block a write.
type ConflictWarning struct {
	EventID string
	Title   string
	Type    string
	Start   time.Time
	End     time.Time
}

// PatternDescription is the human readable and RFC 5545 form of a pattern.
type PatternDescription struct {
	Description string
	RRule       string
}

// EventRepositoryFilter narrows repository listings. StartsBefore bounds the
// start of every event; EndsAfter only applies to single events since series
// roots may produce occurrences long after their first one.
type EventRepositoryFilter struct {
	StartsBefore *time.Time
	EndsAfter    *time.Time
}
