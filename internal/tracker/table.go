// Package tracker holds the learned compatibility caches shared by every
// request in a process: which extra-parameter sets a (model, region) accepts
// and which access method a (model, region) should be invoked with.
//
// Both trackers are bounded LRU tables guarded by a single mutex each. They are
// created once and passed by reference to every retry engine.
package tracker

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity bounds each tracker when no capacity is configured.
const DefaultCapacity = 4096

// Stats reports table usage.
type Stats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Writes    int64 `json:"writes"`
	Stale     int64 `json:"stale"` // Writes dropped because a newer observation was stored
	Evictions int64 `json:"evictions"`
}

type stamped[V any] struct {
	value V
	at    time.Time
}

// table is an LRU map where a write only replaces an entry observed at the
// same time or earlier.
type table[K comparable, V any] struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[K, stamped[V]]
	capacity int
	stats    Stats
}

func newTable[K comparable, V any](capacity int) *table[K, V] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	t := &table[K, V]{capacity: capacity}
	// NewLRU only fails for a non-positive size.
	t.lru, _ = simplelru.NewLRU[K, stamped[V]](capacity, func(K, stamped[V]) {
		t.stats.Evictions++
	})
	return t
}

// put stores value for key as observed at "at". It reports whether the value was stored.
func (t *table[K, V]) put(key K, value V, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.lru.Peek(key); ok && prev.at.After(at) {
		t.stats.Stale++
		return false
	}
	t.lru.Add(key, stamped[V]{value: value, at: at})
	t.stats.Writes++
	return true
}

func (t *table[K, V]) get(key K) (V, time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.lru.Get(key)
	if !ok {
		t.stats.Misses++
		var zero V
		return zero, time.Time{}, false
	}
	t.stats.Hits++
	return entry.value, entry.at, true
}

func (t *table[K, V]) each(fn func(K, V)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, key := range t.lru.Keys() {
		if entry, ok := t.lru.Peek(key); ok {
			fn(key, entry.value)
		}
	}
}

func (t *table[K, V]) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.Entries = t.lru.Len()
	s.Capacity = t.capacity
	return s
}

func (t *table[K, V]) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Purge fires the eviction callback; keep those out of the counters.
	t.lru.Purge()
	t.stats = Stats{}
}
