// Package ical renders stored events as an iCalendar (RFC 5545) document.
package ical

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	goical "github.com/emersion/go-ical"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/recurrence"
)

// DefaultProductID identifies the exporter in the PRODID property.
const DefaultProductID = "-//personal-calendar//Calendar Export//EN"

// Exporter converts events into VCALENDAR documents. Timed values are written
// in UTC so that no VTIMEZONE component is needed.
type Exporter struct {
	productID string
	location  *time.Location
	now       func() time.Time
}

// NewExporter builds an exporter. loc is the wall clock location recurrence
// dates are interpreted in; nil means UTC.
func NewExporter(loc *time.Location, now func() time.Time) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Exporter{productID: DefaultProductID, location: loc, now: now}
}

// Encode writes events to w as a single calendar.
func (x *Exporter) Encode(w io.Writer, events []application.Event) error {
	cal, err := x.Calendar(events)
	if err != nil {
		return err
	}
	if err := goical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// Calendar assembles the calendar object. Series roots become one VEVENT with
// an RRULE and EXDATEs, plus one RECURRENCE-ID VEVENT per modified occurrence.
// Materialized instances are skipped since their root carries them.
func (x *Exporter) Calendar(events []application.Event) (*goical.Calendar, error) {
	cal := goical.NewCalendar()
	cal.Props.SetText(goical.PropProductID, x.productID)
	cal.Props.SetText(goical.PropVersion, "2.0")
	cal.Props.SetText(goical.PropCalendarScale, "GREGORIAN")

	stamp := x.now().UTC()
	ordered := append([]application.Event(nil), events...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})

	for _, event := range ordered {
		if event.IsInstance() {
			continue
		}
		vevent := x.vevent(event, stamp)
		if event.IsRecurring() {
			if err := x.addRecurrence(vevent, event); err != nil {
				return nil, fmt.Errorf("event %s: %w", event.ID, err)
			}
		}
		cal.Children = append(cal.Children, vevent.Component)

		if event.IsRecurring() {
			for _, override := range x.overrides(event, stamp) {
				cal.Children = append(cal.Children, override.Component)
			}
		}
	}
	return cal, nil
}

func (x *Exporter) vevent(event application.Event, stamp time.Time) *goical.Event {
	vevent := goical.NewEvent()
	vevent.Props.SetText(goical.PropUID, event.ID)
	vevent.Props.SetDateTime(goical.PropDateTimeStamp, stamp)
	vevent.Props.SetText(goical.PropSummary, event.Title)
	if event.Description != "" {
		vevent.Props.SetText(goical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(goical.PropLocation, event.Location)
	}
	vevent.Props.SetText(goical.PropCategories, event.Category.String())
	vevent.Props.SetText(goical.PropPriority, strconv.Itoa(priorityValue(event.Priority)))
	vevent.Props.SetText(goical.PropStatus, statusValue(event.Status))
	if !event.CreatedAt.IsZero() {
		vevent.Props.SetDateTime(goical.PropCreated, event.CreatedAt.UTC())
	}
	if !event.UpdatedAt.IsZero() {
		vevent.Props.SetDateTime(goical.PropLastModified, event.UpdatedAt.UTC())
	}
	x.setTimes(vevent.Props, event.Start, event.End, event.AllDay)
	return vevent
}

func (x *Exporter) setTimes(props goical.Props, start time.Time, end *time.Time, allDay bool) {
	if allDay {
		first := start.In(x.location)
		props.SetDate(goical.PropDateTimeStart, first)
		last := first
		if end != nil && end.After(start) {
			last = end.In(x.location)
		}
		props.SetDate(goical.PropDateTimeEnd, last.AddDate(0, 0, 1))
		return
	}
	props.SetDateTime(goical.PropDateTimeStart, start.UTC())
	if end != nil {
		props.SetDateTime(goical.PropDateTimeEnd, end.UTC())
	}
}

func (x *Exporter) addRecurrence(vevent *goical.Event, root application.Event) error {
	start := root.Start.In(x.location)
	rule, err := recurrence.ToRRule(root.Recurrence.Pattern, start)
	if err != nil {
		return err
	}
	prop := goical.NewProp(goical.PropRecurrenceRule)
	prop.Value = rule
	vevent.Props.Set(prop)

	for _, date := range x.excludedDates(root) {
		exdate := goical.NewProp(goical.PropExceptionDates)
		if root.AllDay {
			exdate.SetDate(date)
		} else {
			exdate.SetDateTime(date.UTC())
		}
		vevent.Props.Add(exdate)
	}
	return nil
}

// excludedDates lists exception dates at the series' time of day, followed by
// deleted occurrences, without duplicates.
func (x *Exporter) excludedDates(root application.Event) []time.Time {
	start := root.Start.In(x.location)
	hour, minute, second := start.Clock()

	seen := make(map[string]struct{})
	var dates []time.Time
	add := func(t time.Time) {
		key := recurrence.OccurrenceKey(t)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		dates = append(dates, t)
	}

	for _, ex := range root.Recurrence.Exceptions {
		y, m, d := ex.Date()
		add(time.Date(y, m, d, hour, minute, second, 0, x.location))
	}
	for _, mod := range root.Recurrence.Modifications {
		if mod.IsDeleted {
			add(mod.OriginalDate.In(x.location))
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func (x *Exporter) overrides(root application.Event, stamp time.Time) []*goical.Event {
	var out []*goical.Event
	for _, mod := range root.Recurrence.Modifications {
		if mod.IsDeleted || mod.ModifiedEvent == nil {
			continue
		}
		occurrence := x.applyModification(root, mod)
		vevent := x.vevent(occurrence, stamp)
		recurrenceID := goical.NewProp(goical.PropRecurrenceID)
		if root.AllDay {
			recurrenceID.SetDate(mod.OriginalDate.In(x.location))
		} else {
			recurrenceID.SetDateTime(mod.OriginalDate.UTC())
		}
		vevent.Props.Set(recurrenceID)
		out = append(out, vevent)
	}
	sort.Slice(out, func(i, j int) bool {
		a := out[i].Props.Get(goical.PropRecurrenceID).Value
		b := out[j].Props.Get(goical.PropRecurrenceID).Value
		return a < b
	})
	return out
}

// applyModification shifts the root to the modified occurrence and layers the
// patch over it.
func (x *Exporter) applyModification(root application.Event, mod recurrence.Modification) application.Event {
	occurrence := root.Clone()
	occurrence.Recurrence = nil
	if occurrence.End != nil {
		end := mod.OriginalDate.Add(occurrence.End.Sub(occurrence.Start))
		occurrence.End = &end
	}
	occurrence.Start = mod.OriginalDate
	return occurrence.WithPatch(*mod.ModifiedEvent)
}

// priorityValue maps priorities onto the RFC 5545 1 (highest) to 9 scale.
func priorityValue(p application.Priority) int {
	switch p {
	case application.PriorityHigh:
		return 1
	case application.PriorityLow:
		return 9
	default:
		return 5
	}
}

func statusValue(s application.Status) string {
	switch s {
	case application.StatusTentative:
		return "TENTATIVE"
	case application.StatusCancelled:
		return "CANCELLED"
	default:
		return "CONFIRMED"
	}
}
