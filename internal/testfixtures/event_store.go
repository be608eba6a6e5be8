package testfixtures

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/personal-calendar/internal/application"
)

// EventStore is an in-memory application.EventRepository for service and
// handler tests.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]application.Event
}

var _ application.EventRepository = (*EventStore)(nil)

// NewEventStore returns a store seeded with the given events.
func NewEventStore(seed ...application.Event) *EventStore {
	store := &EventStore{events: make(map[string]application.Event, len(seed))}
	for _, event := range seed {
		store.events[event.ID] = event.Clone()
	}
	return store
}

func (s *EventStore) CreateEvent(_ context.Context, event application.Event) (application.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[event.ID]; exists {
		return application.Event{}, fmt.Errorf("event %s: %w", event.ID, application.ErrAlreadyExists)
	}
	s.events[event.ID] = event.Clone()
	return event.Clone(), nil
}

func (s *EventStore) GetEvent(_ context.Context, id string) (application.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return application.Event{}, application.ErrNotFound
	}
	return event.Clone(), nil
}

func (s *EventStore) UpdateEvent(_ context.Context, event application.Event) (application.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		return application.Event{}, application.ErrNotFound
	}
	s.events[event.ID] = event.Clone()
	return event.Clone(), nil
}

func (s *EventStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return application.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *EventStore) ListEvents(_ context.Context, filter application.EventRepositoryFilter) ([]application.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]application.Event, 0, len(s.events))
	for _, event := range s.events {
		if filter.StartsBefore != nil && event.Start.After(*filter.StartsBefore) {
			continue
		}
		if filter.EndsAfter != nil && !event.IsRecurring() {
			end := event.Start
			if event.End != nil {
				end = *event.End
			}
			if end.Before(*filter.EndsAfter) {
				continue
			}
		}
		out = append(out, event.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// Len reports how many events are stored.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
