package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/personal-calendar/internal/persistence"
)

func newTestRepository(t *testing.T) *EventRepository {
	t.Helper()

	ctx := context.Background()
	pool, err := Open(ctx, InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, pool.Migrate(ctx, nil))

	repo := NewEventRepository(pool)
	repo.now = func() time.Time { return time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC) }
	return repo
}

func strPtr(v string) *string { return &v }

func recurringEvent() persistence.Event {
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	until := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	movedStart := start.AddDate(0, 0, 7).Add(time.Hour)
	weekOfMonth := 2
	dayOfWeek := time.Tuesday

	return persistence.Event{
		ID:          "series-1",
		Title:       "Team sync",
		Description: "Weekly status",
		Location:    "Room 4",
		Start:       start,
		End:         &end,
		Category:    "work",
		Priority:    "high",
		Status:      "confirmed",
		Recurrence: &persistence.Recurrence{
			Frequency:   "weekly",
			Interval:    1,
			EndType:     "onDate",
			EndDate:     &until,
			WeekDays:    []time.Weekday{time.Monday, time.Thursday},
			WeekOfMonth: &weekOfMonth,
			DayOfWeek:   &dayOfWeek,
			Exceptions:  []time.Time{time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)},
			Timezone:    "Europe/Berlin",
			Modifications: []persistence.Modification{
				{OriginalDate: start.AddDate(0, 0, 7), Patch: &persistence.EventPatch{Title: strPtr("Moved sync"), Start: &movedStart}},
				{OriginalDate: start.AddDate(0, 0, 14), IsDeleted: true},
			},
		},
	}
}

func TestEventRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	event := recurringEvent()

	require.NoError(t, repo.CreateEvent(ctx, event))

	fetched, err := repo.GetEvent(ctx, event.ID)
	require.NoError(t, err)

	assert.Equal(t, event.Title, fetched.Title)
	assert.Equal(t, event.Location, fetched.Location)
	assert.True(t, fetched.Start.Equal(event.Start))
	require.NotNil(t, fetched.End)
	assert.True(t, fetched.End.Equal(*event.End))
	assert.Equal(t, time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC), fetched.CreatedAt)

	rec := fetched.Recurrence
	require.NotNil(t, rec)
	assert.Equal(t, "weekly", rec.Frequency)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, rec.WeekDays)
	assert.Equal(t, 2, *rec.WeekOfMonth)
	assert.Equal(t, time.Tuesday, *rec.DayOfWeek)
	assert.Nil(t, rec.DayOfMonth)
	assert.Equal(t, "Europe/Berlin", rec.Timezone)

	// The end date keeps its offset and therefore its calendar date.
	require.NotNil(t, rec.EndDate)
	assert.Equal(t, "2024-06-30", rec.EndDate.Format(time.DateOnly))

	require.Len(t, rec.Exceptions, 1)
	assert.True(t, rec.Exceptions[0].Equal(event.Recurrence.Exceptions[0]))

	require.Len(t, rec.Modifications, 2)
	moved := rec.Modifications[0]
	assert.True(t, moved.OriginalDate.Equal(event.Start.AddDate(0, 0, 7)))
	require.NotNil(t, moved.Patch)
	assert.Equal(t, "Moved sync", *moved.Patch.Title)
	require.NotNil(t, moved.Patch.Start)
	assert.True(t, moved.Patch.Start.Equal(*event.Recurrence.Modifications[0].Patch.Start))
	assert.Nil(t, moved.Patch.Location)
	assert.True(t, rec.Modifications[1].IsDeleted)
	assert.Nil(t, rec.Modifications[1].Patch)
}

func TestEventRepository_UpdateReplacesRecurrence(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	event := recurringEvent()
	require.NoError(t, repo.CreateEvent(ctx, event))

	event.Title = "Renamed"
	event.Recurrence.Exceptions = nil
	event.Recurrence.Modifications = event.Recurrence.Modifications[:1]
	event.Recurrence.EndType = "afterOccurrences"
	event.Recurrence.EndDate = nil
	event.Recurrence.Occurrences = 5
	require.NoError(t, repo.UpdateEvent(ctx, event))

	fetched, err := repo.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fetched.Title)
	assert.Empty(t, fetched.Recurrence.Exceptions)
	assert.Len(t, fetched.Recurrence.Modifications, 1)
	assert.Equal(t, 5, fetched.Recurrence.Occurrences)
	assert.Nil(t, fetched.Recurrence.EndDate)

	event.Recurrence = nil
	require.NoError(t, repo.UpdateEvent(ctx, event))
	fetched, err = repo.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.Recurrence)

	missing := event
	missing.ID = "missing"
	assert.ErrorIs(t, repo.UpdateEvent(ctx, missing), persistence.ErrNotFound)
}

func TestEventRepository_ListEvents(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	at := func(day int) time.Time { return time.Date(2024, time.May, day, 10, 0, 0, 0, time.UTC) }
	single := func(id string, day int) persistence.Event {
		end := at(day).Add(time.Hour)
		return persistence.Event{ID: id, Title: id, Start: at(day), End: &end}
	}

	require.NoError(t, repo.CreateEvent(ctx, single("past", 1)))
	require.NoError(t, repo.CreateEvent(ctx, single("inside", 12)))
	require.NoError(t, repo.CreateEvent(ctx, single("future", 25)))
	require.NoError(t, repo.CreateEvent(ctx, persistence.Event{
		ID: "daily", Title: "daily", Start: at(2),
		Recurrence: &persistence.Recurrence{Frequency: "daily", Interval: 1, EndType: "never"},
	}))

	all, err := repo.ListEvents(ctx, persistence.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"past", "daily", "inside", "future"}, eventIDs(all))

	from, to := at(10), at(20)
	inRange, err := repo.ListEvents(ctx, persistence.EventFilter{StartsBefore: &to, EndsAfter: &from})
	require.NoError(t, err)
	assert.Equal(t, []string{"daily", "inside"}, eventIDs(inRange))
	require.NotNil(t, inRange[0].Recurrence)
	assert.Nil(t, inRange[1].Recurrence)

	none, err := repo.ListEvents(ctx, persistence.EventFilter{StartsBefore: func() *time.Time { v := at(1).Add(-time.Hour); return &v }()})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEventRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	event := recurringEvent()
	require.NoError(t, repo.CreateEvent(ctx, event))

	require.NoError(t, repo.DeleteEvent(ctx, event.ID))
	_, err := repo.GetEvent(ctx, event.ID)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteEvent(ctx, event.ID), persistence.ErrNotFound)

	var count int
	require.NoError(t, repo.pool.DB().GetContext(ctx, &count, `SELECT COUNT(*) FROM recurrence_modifications`))
	assert.Zero(t, count)

	// The id can be reused once the old rows are gone.
	require.NoError(t, repo.CreateEvent(ctx, event))
}

func TestEventRepository_MapsConstraintErrors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	event := recurringEvent()
	require.NoError(t, repo.CreateEvent(ctx, event))

	assert.ErrorIs(t, repo.CreateEvent(ctx, event), persistence.ErrDuplicate)

	untitled := recurringEvent()
	untitled.ID = "untitled"
	untitled.Title = ""
	assert.ErrorIs(t, repo.CreateEvent(ctx, untitled), persistence.ErrConstraintViolation)

	badInterval := recurringEvent()
	badInterval.ID = "bad-interval"
	badInterval.Recurrence.Interval = 0
	assert.ErrorIs(t, repo.CreateEvent(ctx, badInterval), persistence.ErrConstraintViolation)
	_, err := repo.GetEvent(ctx, "bad-interval")
	assert.ErrorIs(t, err, persistence.ErrNotFound, "failed insert must roll back the event row")
}

func TestWeekdayBitmask(t *testing.T) {
	days := []time.Weekday{time.Saturday, time.Monday, time.Monday, time.Weekday(9)}
	mask := encodeWeekdays(days)
	assert.Equal(t, int64(1<<1|1<<6), mask)
	assert.Equal(t, []time.Weekday{time.Monday, time.Saturday}, decodeWeekdays(mask))
	assert.Nil(t, decodeWeekdays(0))
}

func eventIDs(events []persistence.Event) []string {
	ids := make([]string, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	return ids
}
