// Package scheduler detects overlapping calendar slots.
package scheduler

import (
	"sort"
	"time"
)

// Slot is the time span one event or occurrence occupies. SeriesID groups the
// occurrences of a recurring event so a series never conflicts with itself.
type Slot struct {
	ID       string
	SeriesID string
	Start    time.Time
	End      time.Time
	AllDay   bool
}

// ConflictType describes how two slots collide.
type ConflictType string

const (
	// ConflictTypeOverlap indicates two timed slots share part of their span.
	ConflictTypeOverlap ConflictType = "overlap"
	// ConflictTypeAllDay indicates at least one side is an all-day event on a shared date.
	ConflictTypeAllDay ConflictType = "all_day"
)

// Conflict details an overlapping slot that callers can present to users.
type Conflict struct {
	WithID string
	Type   ConflictType
	Start  time.Time
	End    time.Time
}

// DetectConflicts returns the existing slots that overlap candidate, ordered
// by start then id. Spans are half-open; a slot without duration occupies a
// single instant.
func DetectConflicts(existing []Slot, candidate Slot) []Conflict {
	cStart, cEnd := span(candidate)

	var conflicts []Conflict
	for _, slot := range existing {
		if slot.ID == candidate.ID {
			continue
		}
		if candidate.SeriesID != "" && slot.SeriesID == candidate.SeriesID {
			continue
		}
		start, end := span(slot)
		if !start.Before(cEnd) || !cStart.Before(end) {
			continue
		}
		kind := ConflictTypeOverlap
		if slot.AllDay || candidate.AllDay {
			kind = ConflictTypeAllDay
		}
		conflicts = append(conflicts, Conflict{WithID: slot.ID, Type: kind, Start: slot.Start, End: slot.End})
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Start.Equal(conflicts[j].Start) {
			return conflicts[i].WithID < conflicts[j].WithID
		}
		return conflicts[i].Start.Before(conflicts[j].Start)
	})
	return conflicts
}

// span normalizes a slot into a half-open interval. All-day slots cover whole
// calendar days in the location of their start.
func span(slot Slot) (time.Time, time.Time) {
	start, end := slot.Start, slot.End
	if end.Before(start) {
		end = start
	}
	if slot.AllDay {
		y, m, d := start.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, start.Location())
		ey, em, ed := end.In(start.Location()).Date()
		end = time.Date(ey, em, ed, 0, 0, 0, 0, start.Location()).AddDate(0, 0, 1)
	}
	if !end.After(start) {
		end = start.Add(time.Nanosecond)
	}
	return start, end
}
