package recurrence

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recurringRoot(mods ...Modification) Event {
	end := at(2024, time.January, 1, 11, 0)
	return Event{
		ID:       "root",
		Title:    "Gym",
		Location: "Downtown",
		Start:    at(2024, time.January, 1, 10, 0),
		End:      &end,
		Category: "health",
		Recurrence: &EventRecurrence{
			Pattern:       daily(1),
			Modifications: mods,
		},
	}
}

func TestCreateEventInstances_RoundTrip(t *testing.T) {
	t.Parallel()

	root := recurringRoot()
	instances := GenerateInstances(root, root.Recurrence.Pattern, date(2024, time.January, 1), date(2024, time.January, 7))
	events := CreateEventInstances(root, instances)

	require.Len(t, events, len(instances))
	for i, event := range events {
		assert.Equal(t, instances[i].Date, event.Start)
		assert.Equal(t, InstanceID("root", instances[i].Date), event.ID)
		assert.Equal(t, "Gym", event.Title)
		require.NotNil(t, event.Recurrence)
		assert.Equal(t, "root", event.Recurrence.ParentEventID)
		require.NotNil(t, event.Recurrence.InstanceDate)
		assert.Equal(t, instances[i].Date, *event.Recurrence.InstanceDate)
		assert.Empty(t, event.Recurrence.Modifications)
	}
}

func TestCreateEventInstances_DeletedOccurrenceIsDropped(t *testing.T) {
	t.Parallel()

	root := recurringRoot(Modification{OriginalDate: at(2024, time.January, 3, 10, 0), IsDeleted: true})
	instances := GenerateInstances(root, root.Recurrence.Pattern, date(2024, time.January, 1), date(2024, time.January, 5))
	events := CreateEventInstances(root, instances)

	var starts []string
	for _, event := range events {
		starts = append(starts, event.Start.Format(time.DateOnly))
	}
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-04", "2024-01-05"}, starts)
}

func TestCreateEventInstances_ModificationOverridesFields(t *testing.T) {
	t.Parallel()

	// The override is expressed in another zone; it must still join.
	tokyo := time.FixedZone("JST", 9*60*60)
	original := at(2024, time.January, 2, 10, 0).In(tokyo)
	root := recurringRoot(Modification{
		OriginalDate:  original,
		ModifiedEvent: &EventPatch{Title: mo.Some("Gym with coach"), Location: mo.Some("")},
	})
	root.Title = "Gym (renamed)"

	instances := GenerateInstances(root, root.Recurrence.Pattern, date(2024, time.January, 1), date(2024, time.January, 3))
	events := CreateEventInstances(root, instances)

	require.Len(t, events, 3)
	assert.Equal(t, "Gym (renamed)", events[0].Title)
	assert.Equal(t, "Gym with coach", events[1].Title)
	assert.Equal(t, "", events[1].Location)
	assert.Equal(t, "health", events[1].Category)
	assert.Equal(t, "Downtown", events[2].Location)
}

func TestCreateEventInstances_DoesNotShareState(t *testing.T) {
	t.Parallel()

	root := recurringRoot()
	events := CreateEventInstances(root, GenerateInstances(root, root.Recurrence.Pattern, date(2024, time.January, 1), date(2024, time.January, 2)))
	require.Len(t, events, 2)

	*events[0].End = events[0].End.Add(time.Hour)
	events[0].Recurrence.Interval = 9

	assert.Equal(t, at(2024, time.January, 1, 11, 0), *root.End)
	assert.Equal(t, 1, root.Recurrence.Interval)
	assert.Equal(t, 1, events[1].Recurrence.Interval)
}

func TestParseInstanceID(t *testing.T) {
	t.Parallel()

	occurrence := time.Date(2024, time.March, 5, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	id := InstanceID("4c1e2b9a-1111-2222-3333-444455556666", occurrence)
	assert.Equal(t, "4c1e2b9a-1111-2222-3333-444455556666_2024-03-05T08:30:00Z", id)

	root, parsed, ok := ParseInstanceID(id)
	require.True(t, ok)
	assert.Equal(t, "4c1e2b9a-1111-2222-3333-444455556666", root)
	assert.True(t, parsed.Equal(occurrence))

	for _, invalid := range []string{"", "root", "root_", "_2024-03-05T08:30:00Z", "root_yesterday"} {
		_, _, ok := ParseInstanceID(invalid)
		assert.False(t, ok, invalid)
	}
}

func TestEngine_ExpandSkipsInstances(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	root := recurringRoot()
	assert.Len(t, engine.Expand(root, date(2024, time.January, 1), date(2024, time.January, 3)), 3)

	instance := root.Clone()
	instance.Recurrence.ParentEventID = "root"
	assert.Empty(t, engine.Expand(instance, date(2024, time.January, 1), date(2024, time.January, 3)))
	assert.Empty(t, engine.Expand(Event{ID: "single", Start: at(2024, time.January, 1, 9, 0)}, date(2024, time.January, 1), date(2024, time.January, 3)))
}
