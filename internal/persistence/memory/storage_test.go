package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/personal-calendar/internal/persistence"
	"github.com/example/personal-calendar/internal/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_CRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.Open()
	defer store.Close()

	start := time.Date(2024, time.May, 6, 9, 0, 0, 0, time.UTC)
	title := "Stand-up moved"
	event := persistence.Event{
		ID:    "evt-1",
		Title: "Stand-up",
		Start: start,
		Recurrence: &persistence.Recurrence{
			Frequency: "weekly",
			Interval:  1,
			EndType:   "never",
			WeekDays:  []time.Weekday{time.Monday},
			Modifications: []persistence.Modification{
				{OriginalDate: start.AddDate(0, 0, 7), Patch: &persistence.EventPatch{Title: &title}},
			},
		},
		CreatedAt: start,
		UpdatedAt: start,
	}

	require.NoError(t, store.CreateEvent(ctx, event))
	require.ErrorIs(t, store.CreateEvent(ctx, event), persistence.ErrDuplicate)

	fetched, err := store.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, event, fetched)

	// Mutating the returned copy must not leak into the store.
	*fetched.Recurrence.Modifications[0].Patch.Title = "changed"
	fetched.Recurrence.WeekDays[0] = time.Friday
	again, err := store.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "Stand-up moved", *again.Recurrence.Modifications[0].Patch.Title)
	assert.Equal(t, []time.Weekday{time.Monday}, again.Recurrence.WeekDays)

	event.Title = "Daily stand-up"
	event.CreatedAt = start.Add(time.Hour)
	require.NoError(t, store.UpdateEvent(ctx, event))
	updated, err := store.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "Daily stand-up", updated.Title)
	assert.Equal(t, start, updated.CreatedAt)

	require.NoError(t, store.DeleteEvent(ctx, "evt-1"))
	require.ErrorIs(t, store.DeleteEvent(ctx, "evt-1"), persistence.ErrNotFound)
	_, err = store.GetEvent(ctx, "evt-1")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	require.ErrorIs(t, store.UpdateEvent(ctx, event), persistence.ErrNotFound)
}

func TestStorage_ListEventsFiltersAndSorts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.Open()

	day := func(d int) time.Time { return time.Date(2024, time.June, d, 10, 0, 0, 0, time.UTC) }
	end := func(d int) *time.Time { v := day(d).Add(time.Hour); return &v }

	require.NoError(t, store.CreateEvent(ctx, persistence.Event{ID: "late", Start: day(20), End: end(20)}))
	require.NoError(t, store.CreateEvent(ctx, persistence.Event{ID: "early", Start: day(1), End: end(1)}))
	require.NoError(t, store.CreateEvent(ctx, persistence.Event{ID: "mid", Start: day(10), End: end(10)}))
	require.NoError(t, store.CreateEvent(ctx, persistence.Event{
		ID: "series", Start: day(1),
		Recurrence: &persistence.Recurrence{Frequency: "daily", Interval: 1, EndType: "never"},
	}))

	all, err := store.ListEvents(ctx, persistence.EventFilter{})
	require.NoError(t, err)
	var ids []string
	for _, event := range all {
		ids = append(ids, event.ID)
	}
	assert.Equal(t, []string{"early", "series", "mid", "late"}, ids)

	from, to := day(5), day(15)
	filtered, err := store.ListEvents(ctx, persistence.EventFilter{StartsBefore: &to, EndsAfter: &from})
	require.NoError(t, err)
	ids = nil
	for _, event := range filtered {
		ids = append(ids, event.ID)
	}
	assert.Equal(t, []string{"series", "mid"}, ids)
}

func TestStorage_RejectsEmptyID(t *testing.T) {
	t.Parallel()

	err := memory.Open().CreateEvent(context.Background(), persistence.Event{Title: "untitled"})
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
}
