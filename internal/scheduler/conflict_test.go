package scheduler

import (
	"testing"
	"time"
)

func TestDetectConflicts(t *testing.T) {
	base := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	slot := func(id string, startHour, endHour int) Slot {
		return Slot{
			ID:    id,
			Start: base.Add(time.Duration(startHour) * time.Hour),
			End:   base.Add(time.Duration(endHour) * time.Hour),
		}
	}

	t.Run("overlapping slots produce conflicts in start order", func(t *testing.T) {
		existing := []Slot{slot("late", 2, 4), slot("early", 0, 2), slot("apart", 5, 6)}
		conflicts := DetectConflicts(existing, slot("candidate", 1, 3))
		if len(conflicts) != 2 {
			t.Fatalf("expected 2 conflicts, got %d", len(conflicts))
		}
		if conflicts[0].WithID != "early" || conflicts[1].WithID != "late" {
			t.Fatalf("unexpected order: %+v", conflicts)
		}
		if conflicts[0].Type != ConflictTypeOverlap {
			t.Fatalf("expected overlap type, got %s", conflicts[0].Type)
		}
	})

	t.Run("touching slots do not conflict", func(t *testing.T) {
		if conflicts := DetectConflicts([]Slot{slot("before", 0, 1)}, slot("candidate", 1, 2)); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})

	t.Run("same id and same series are ignored", func(t *testing.T) {
		self := slot("candidate", 0, 2)
		sibling := slot("root_2024-03-04T09:00:00Z", 0, 2)
		sibling.SeriesID = "root"
		candidate := slot("candidate", 0, 2)
		candidate.SeriesID = "root"
		if conflicts := DetectConflicts([]Slot{self, sibling}, candidate); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})

	t.Run("instant slot inside another conflicts", func(t *testing.T) {
		point := Slot{ID: "point", Start: base.Add(time.Hour), End: base.Add(time.Hour)}
		conflicts := DetectConflicts([]Slot{point}, slot("candidate", 0, 2))
		if len(conflicts) != 1 || conflicts[0].WithID != "point" {
			t.Fatalf("expected conflict with point, got %+v", conflicts)
		}
	})

	t.Run("all-day slot covers the whole date", func(t *testing.T) {
		holiday := Slot{ID: "holiday", Start: base, End: base, AllDay: true}
		evening := Slot{ID: "evening", Start: base.Add(12 * time.Hour), End: base.Add(13 * time.Hour)}
		conflicts := DetectConflicts([]Slot{holiday}, evening)
		if len(conflicts) != 1 || conflicts[0].Type != ConflictTypeAllDay {
			t.Fatalf("expected all-day conflict, got %+v", conflicts)
		}

		nextDay := Slot{ID: "next", Start: base.Add(24 * time.Hour), End: base.Add(25 * time.Hour)}
		if conflicts := DetectConflicts([]Slot{holiday}, nextDay); len(conflicts) != 0 {
			t.Fatalf("expected no conflict on the next day, got %+v", conflicts)
		}
	})
}
