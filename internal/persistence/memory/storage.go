// Package memory provides an in-process implementation of the persistence
// repositories. It backs tests and the memory storage mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/personal-calendar/internal/persistence"
)

// Storage keeps events in a map guarded by a read/write mutex.
type Storage struct {
	mu     sync.RWMutex
	events map[string]persistence.Event
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{events: make(map[string]persistence.Event)}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// CreateEvent stores a new event.
func (s *Storage) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; ok {
		return fmt.Errorf("memory: event %s: %w", event.ID, persistence.ErrDuplicate)
	}

	s.events[event.ID] = persistence.CloneEvent(event)
	return nil
}

// UpdateEvent replaces an existing event, keeping its creation time.
func (s *Storage) UpdateEvent(ctx context.Context, event persistence.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[event.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	event.CreatedAt = existing.CreatedAt
	s.events[event.ID] = persistence.CloneEvent(event)
	return nil
}

// GetEvent retrieves an event by ID.
func (s *Storage) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}

	return persistence.CloneEvent(event), nil
}

// ListEvents returns the events matching filter ordered by start time.
func (s *Storage) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]persistence.Event, 0, len(s.events))
	for _, event := range s.events {
		if !filter.Matches(event) {
			continue
		}
		events = append(events, persistence.CloneEvent(event))
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})

	return events, nil
}

// DeleteEvent removes an event and everything attached to it.
func (s *Storage) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.events, id)
	return nil
}
