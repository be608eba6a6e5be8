package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/persistence"
	"github.com/example/personal-calendar/internal/recurrence"
)

// eventRepositoryAdapter exposes a persistence.EventRepository to the
// application layer.
type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored)
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id string) error {
	return a.repo.DeleteEvent(ctx, id)
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventRepositoryFilter) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		StartsBefore: cloneTime(filter.StartsBefore),
		EndsAfter:    cloneTime(filter.EndsAfter),
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		event, err := toApplicationEvent(model)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       event.Start,
		End:         cloneTime(event.End),
		AllDay:      event.AllDay,
		Category:    event.Category.String(),
		Priority:    event.Priority.String(),
		Status:      event.Status.String(),
		Recurrence:  toPersistenceRecurrence(event.Recurrence),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func toApplicationEvent(model persistence.Event) (application.Event, error) {
	category, err := application.ParseCategory(model.Category)
	if err != nil {
		return application.Event{}, fmt.Errorf("decode event %s: %w", model.ID, err)
	}
	priority, err := application.ParsePriority(model.Priority)
	if err != nil {
		return application.Event{}, fmt.Errorf("decode event %s: %w", model.ID, err)
	}
	status, err := application.ParseStatus(model.Status)
	if err != nil {
		return application.Event{}, fmt.Errorf("decode event %s: %w", model.ID, err)
	}
	return application.Event{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		Location:    model.Location,
		Start:       model.Start,
		End:         cloneTime(model.End),
		AllDay:      model.AllDay,
		Category:    category,
		Priority:    priority,
		Status:      status,
		Recurrence:  toApplicationRecurrence(model.Recurrence),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}, nil
}

// toPersistenceRecurrence maps a series root's recurrence. Instances are
// never stored, so their parent linkage is dropped.
func toPersistenceRecurrence(rec *recurrence.EventRecurrence) *persistence.Recurrence {
	if rec == nil {
		return nil
	}
	p := rec.Pattern.Clone()
	out := &persistence.Recurrence{
		Frequency:   string(p.Frequency),
		Interval:    p.Interval,
		EndType:     string(p.EndType),
		EndDate:     p.EndDate,
		Occurrences: p.Occurrences,
		WeekDays:    p.WeekDays,
		MonthlyType: string(p.MonthlyType),
		DayOfMonth:  p.DayOfMonth,
		WeekOfMonth: p.WeekOfMonth,
		DayOfWeek:   p.DayOfWeek,
		Exceptions:  p.Exceptions,
		Timezone:    p.Timezone,
	}
	for _, mod := range rec.Modifications {
		out.Modifications = append(out.Modifications, persistence.Modification{
			OriginalDate: mod.OriginalDate,
			Patch:        toPersistencePatch(mod.ModifiedEvent),
			IsDeleted:    mod.IsDeleted,
		})
	}
	return out
}

func toApplicationRecurrence(rec *persistence.Recurrence) *recurrence.EventRecurrence {
	if rec == nil {
		return nil
	}
	stored := persistence.CloneEvent(persistence.Event{Recurrence: rec}).Recurrence
	out := &recurrence.EventRecurrence{
		Pattern: recurrence.Pattern{
			Frequency:   recurrence.Frequency(stored.Frequency),
			Interval:    stored.Interval,
			EndType:     recurrence.EndType(stored.EndType),
			EndDate:     stored.EndDate,
			Occurrences: stored.Occurrences,
			WeekDays:    stored.WeekDays,
			MonthlyType: recurrence.MonthlyType(stored.MonthlyType),
			DayOfMonth:  stored.DayOfMonth,
			WeekOfMonth: stored.WeekOfMonth,
			DayOfWeek:   stored.DayOfWeek,
			Exceptions:  stored.Exceptions,
			Timezone:    stored.Timezone,
		},
	}
	for _, mod := range stored.Modifications {
		out.Modifications = append(out.Modifications, recurrence.Modification{
			OriginalDate:  mod.OriginalDate,
			ModifiedEvent: toApplicationPatch(mod.Patch),
			IsDeleted:     mod.IsDeleted,
		})
	}
	return out
}

func toPersistencePatch(patch *recurrence.EventPatch) *persistence.EventPatch {
	if patch == nil {
		return nil
	}
	return &persistence.EventPatch{
		Title:       patch.Title.ToPointer(),
		Description: patch.Description.ToPointer(),
		Location:    patch.Location.ToPointer(),
		Start:       patch.Start.ToPointer(),
		End:         patch.End.ToPointer(),
		AllDay:      patch.AllDay.ToPointer(),
		Category:    patch.Category.ToPointer(),
		Priority:    patch.Priority.ToPointer(),
		Status:      patch.Status.ToPointer(),
	}
}

func toApplicationPatch(patch *persistence.EventPatch) *recurrence.EventPatch {
	if patch == nil {
		return nil
	}
	return &recurrence.EventPatch{
		Title:       mo.PointerToOption(patch.Title),
		Description: mo.PointerToOption(patch.Description),
		Location:    mo.PointerToOption(patch.Location),
		Start:       mo.PointerToOption(patch.Start),
		End:         mo.PointerToOption(patch.End),
		AllDay:      mo.PointerToOption(patch.AllDay),
		Category:    mo.PointerToOption(patch.Category),
		Priority:    mo.PointerToOption(patch.Priority),
		Status:      mo.PointerToOption(patch.Status),
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
