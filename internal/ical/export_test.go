package ical

import (
	"bytes"
	"strings"
	"testing"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/recurrence"
	"github.com/example/personal-calendar/internal/testfixtures"
)

func exportAndDecode(t *testing.T, events ...application.Event) *goical.Calendar {
	t.Helper()
	exporter := NewExporter(time.UTC, testfixtures.ReferenceTime)

	var buf bytes.Buffer
	require.NoError(t, exporter.Encode(&buf, events))

	cal, err := goical.NewDecoder(&buf).Decode()
	require.NoError(t, err)
	return cal
}

func propValue(t *testing.T, event goical.Event, name string) string {
	t.Helper()
	prop := event.Props.Get(name)
	require.NotNil(t, prop, "missing %s", name)
	return prop.Value
}

func TestExporterSingleEvent(t *testing.T) {
	t.Parallel()

	event := testfixtures.NewEventFixture(
		testfixtures.WithEventID("evt-1"),
		testfixtures.WithEventTitle("Dentist"),
		testfixtures.WithEventLocation("Clinic"),
		testfixtures.WithEventCategory(application.CategoryHealth),
		testfixtures.WithEventPriority(application.PriorityHigh),
		testfixtures.WithEventStatus(application.StatusTentative),
	).Application()

	cal := exportAndDecode(t, event)
	assert.Equal(t, DefaultProductID, cal.Props.Get(goical.PropProductID).Value)

	events := cal.Events()
	require.Len(t, events, 1)
	vevent := events[0]
	assert.Equal(t, "evt-1", propValue(t, vevent, goical.PropUID))
	assert.Equal(t, "Dentist", propValue(t, vevent, goical.PropSummary))
	assert.Equal(t, "Clinic", propValue(t, vevent, goical.PropLocation))
	assert.Equal(t, "health", propValue(t, vevent, goical.PropCategories))
	assert.Equal(t, "1", propValue(t, vevent, goical.PropPriority))
	assert.Equal(t, "TENTATIVE", propValue(t, vevent, goical.PropStatus))
	assert.Equal(t, "20240101T090000Z", propValue(t, vevent, goical.PropDateTimeStart))
	assert.Equal(t, "20240101T100000Z", propValue(t, vevent, goical.PropDateTimeEnd))
	assert.Nil(t, vevent.Props.Get(goical.PropRecurrenceRule))
}

func TestExporterAllDayEvent(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
	event := testfixtures.NewEventFixture(
		testfixtures.WithEventID("evt-holiday"),
		testfixtures.WithEventTimes(day, day),
		testfixtures.WithEventAllDay(),
	).Application()

	events := exportAndDecode(t, event).Events()
	require.Len(t, events, 1)
	assert.Equal(t, "20240105", propValue(t, events[0], goical.PropDateTimeStart))
	assert.Equal(t, "20240106", propValue(t, events[0], goical.PropDateTimeEnd))
}

func TestExporterSeries(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	event := testfixtures.NewEventFixture(
		testfixtures.WithEventID("evt-standup"),
		testfixtures.WithEventTitle("Standup"),
		testfixtures.WithEventTimes(start, start.Add(15*time.Minute)),
		testfixtures.WithEventPattern(testfixtures.DailyPattern(5)),
		testfixtures.WithEventException(time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)),
		testfixtures.WithEventDeletedOccurrence(start.AddDate(0, 0, 1)),
		testfixtures.WithEventOverride(start.AddDate(0, 0, 3), recurrence.EventPatch{
			Title: mo.Some("Long standup"),
			End:   mo.Some(start.AddDate(0, 0, 3).Add(time.Hour)),
		}),
	).Application()

	events := exportAndDecode(t, event).Events()
	require.Len(t, events, 2)

	root := events[0]
	assert.Equal(t, "evt-standup", propValue(t, root, goical.PropUID))
	rule := propValue(t, root, goical.PropRecurrenceRule)
	assert.Contains(t, rule, "FREQ=DAILY")
	assert.Contains(t, rule, "COUNT=5")

	var exdates []string
	for _, prop := range root.Props[goical.PropExceptionDates] {
		exdates = append(exdates, prop.Value)
	}
	assert.Equal(t, []string{"20240102T090000Z", "20240103T090000Z"}, exdates)

	override := events[1]
	assert.Equal(t, "evt-standup", propValue(t, override, goical.PropUID))
	assert.Equal(t, "20240104T090000Z", propValue(t, override, goical.PropRecurrenceID))
	assert.Equal(t, "Long standup", propValue(t, override, goical.PropSummary))
	assert.Equal(t, "20240104T100000Z", propValue(t, override, goical.PropDateTimeEnd))
	assert.Nil(t, override.Props.Get(goical.PropRecurrenceRule))
}

func TestExporterOverrideLayersPatchOverOccurrence(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	original := start.AddDate(0, 0, 2)
	root := testfixtures.NewEventFixture(
		testfixtures.WithEventID("evt-swim"),
		testfixtures.WithEventTitle("Swim"),
		testfixtures.WithEventLocation("Lake"),
		testfixtures.WithEventCategory(application.CategoryHealth),
		testfixtures.WithEventTimes(start, start.Add(30*time.Minute)),
		testfixtures.WithEventPattern(testfixtures.DailyPattern(5)),
		testfixtures.WithEventOverride(original, recurrence.EventPatch{
			Location: mo.Some("Pool"),
			Start:    mo.Some(original.Add(2 * time.Hour)),
			End:      mo.Some(original.Add(3 * time.Hour)),
			Priority: mo.Some("high"),
			Category: mo.Some("errands"),
		}),
	).Application()

	occurrence := NewExporter(time.UTC, testfixtures.ReferenceTime).applyModification(root, root.Recurrence.Modifications[0])
	assert.Equal(t, "Swim", occurrence.Title)
	assert.Equal(t, "Pool", occurrence.Location)
	assert.Equal(t, original.Add(2*time.Hour), occurrence.Start)
	require.NotNil(t, occurrence.End)
	assert.Equal(t, original.Add(3*time.Hour), *occurrence.End)
	assert.Equal(t, application.PriorityHigh, occurrence.Priority)
	assert.Equal(t, application.CategoryHealth, occurrence.Category, "unknown labels keep the series value")
	assert.Nil(t, occurrence.Recurrence)

	events := exportAndDecode(t, root).Events()
	require.Len(t, events, 2)
	override := events[1]
	assert.Equal(t, "20240103T090000Z", propValue(t, override, goical.PropRecurrenceID))
	assert.Equal(t, "20240103T110000Z", propValue(t, override, goical.PropDateTimeStart))
	assert.Equal(t, "Pool", propValue(t, override, goical.PropLocation))
}

func TestExporterSkipsInstancesAndOrdersByStart(t *testing.T) {
	t.Parallel()

	later := testfixtures.NewEventFixture(
		testfixtures.WithEventID("evt-b"),
		testfixtures.WithEventTimes(testfixtures.ReferenceTime().Add(48*time.Hour), testfixtures.ReferenceTime().Add(49*time.Hour)),
	).Application()
	earlier := testfixtures.NewEventFixture(testfixtures.WithEventID("evt-a")).Application()

	instance := earlier.Clone()
	instance.ID = recurrence.InstanceID("evt-root", instance.Start)
	instance.Recurrence = &recurrence.EventRecurrence{ParentEventID: "evt-root", InstanceDate: &instance.Start}

	events := exportAndDecode(t, later, instance, earlier).Events()
	require.Len(t, events, 2)
	assert.Equal(t, "evt-a", propValue(t, events[0], goical.PropUID))
	assert.Equal(t, "evt-b", propValue(t, events[1], goical.PropUID))
}

func TestExporterRejectsInvalidPattern(t *testing.T) {
	t.Parallel()

	event := testfixtures.NewEventFixture(
		testfixtures.WithEventID("evt-broken"),
		testfixtures.WithEventPattern(recurrence.Pattern{Frequency: recurrence.FrequencyDaily, Interval: 0, EndType: recurrence.EndNever}),
	).Application()

	var buf bytes.Buffer
	err := NewExporter(nil, nil).Encode(&buf, []application.Event{event})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "evt-broken"))
	assert.Zero(t, buf.Len())
}
