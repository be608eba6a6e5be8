package application

import (
	"strconv"
	"sync"
	"time"
)

// expansionCache keeps recently expanded ranges so repeated list and search
// calls over an unchanged store skip the engine. Keys carry the store revision
// so an entry computed before a write can never be served after it.
type expansionCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]expansionCacheEntry
}

type expansionCacheEntry struct {
	events    []Event
	expiresAt time.Time
}

func newExpansionCache(ttl time.Duration, maxEntries int, now func() time.Time) *expansionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &expansionCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]expansionCacheEntry),
	}
}

func (c *expansionCache) Get(key string) ([]Event, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneEvents(entry.events), true
}

func (c *expansionCache) Store(key string, events []Event) {
	if c == nil {
		return
	}
	cloned := cloneEvents(events)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = expansionCacheEntry{events: cloned, expiresAt: expiry}
}

func (c *expansionCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]expansionCacheEntry)
	c.mu.Unlock()
}

// Purge drops expired entries and reports how many were removed.
func (c *expansionCache) Purge() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked()
}

func (c *expansionCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *expansionCache) cleanupLocked() int {
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// evictOneLocked drops the entry closest to expiry.
func (c *expansionCache) evictOneLocked() {
	var (
		victim string
		oldest time.Time
	)
	for key, entry := range c.entries {
		if victim == "" || entry.expiresAt.Before(oldest) {
			victim, oldest = key, entry.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

func cloneEvents(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, len(events))
	for i, event := range events {
		out[i] = event.Clone()
	}
	return out
}

func buildExpansionCacheKey(revision uint64, rangeStart, rangeEnd time.Time) string {
	return strconv.FormatUint(revision, 10) + "|" +
		rangeStart.UTC().Format(time.RFC3339Nano) + "|" +
		rangeEnd.UTC().Format(time.RFC3339Nano)
}
