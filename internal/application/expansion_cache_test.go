package application

import (
	"testing"
	"time"
)

func TestExpansionCacheStoresAndReturnsCopies(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newExpansionCache(time.Minute, 4, func() time.Time { return current })

	end := fixed.Add(time.Hour)
	original := []Event{{ID: "event-1", Title: "Gym", Start: fixed, End: &end}}
	cache.Store("key", original)

	// Mutating the original slice should not affect the cached copy.
	original[0].Title = "mutated"
	*original[0].End = fixed

	cached, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached[0].Title != "Gym" || !cached[0].End.Equal(fixed.Add(time.Hour)) {
		t.Fatalf("expected cached event to remain unchanged, got %+v", cached[0])
	}

	// Mutating the returned slice should not be visible on subsequent reads.
	cached[0].Title = "changed"
	cachedAgain, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit on second read")
	}
	if cachedAgain[0].Title != "Gym" {
		t.Fatalf("expected cache to return independent copy, got %s", cachedAgain[0].Title)
	}
}

func TestExpansionCacheExpiresAndPurges(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newExpansionCache(time.Second, 4, func() time.Time { return current })

	cache.Store("a", []Event{{ID: "event-1"}})
	cache.Store("b", []Event{{ID: "event-2"}})
	if _, ok := cache.Get("a"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("a"); ok {
		t.Fatalf("expected cache entry to expire")
	}
	if removed := cache.Purge(); removed != 1 {
		t.Fatalf("expected purge to remove the remaining expired entry, removed %d", removed)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", cache.Len())
	}
}

func TestExpansionCacheEvictsEntryClosestToExpiry(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newExpansionCache(time.Minute, 2, func() time.Time { return current })

	cache.Store("oldest", nil)
	current = current.Add(time.Second)
	cache.Store("newer", nil)
	current = current.Add(time.Second)
	cache.Store("newest", nil)

	if _, ok := cache.Get("oldest"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if _, ok := cache.Get("newer"); !ok {
		t.Fatalf("expected newer entry to survive")
	}
	if _, ok := cache.Get("newest"); !ok {
		t.Fatalf("expected newest entry to be stored")
	}
}

func TestExpansionCacheInvalidate(t *testing.T) {
	cache := newExpansionCache(time.Minute, 4, time.Now)
	cache.Store("key", []Event{{ID: "event-1"}})
	cache.Invalidate()
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}
}

func TestBuildExpansionCacheKeyNormalizesZones(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)

	if buildExpansionCacheKey(1, start, start) != buildExpansionCacheKey(1, start.In(tokyo), start.In(tokyo)) {
		t.Fatalf("expected equal instants to share a key")
	}
	if buildExpansionCacheKey(1, start, start) == buildExpansionCacheKey(2, start, start) {
		t.Fatalf("expected revisions to produce distinct keys")
	}
}
