// ABOUTME: TTL-based query result cache for repeated searches
// ABOUTME: Invalidated by time alone; bounded staleness is the accepted tradeoff
package store

import (
	"sync"
	"time"
)

// DefaultQueryCacheTTL bounds how stale a cached search result may be.
const DefaultQueryCacheTTL = 2 * time.Minute

type cacheEntry struct {
	phones  []string
	expires time.Time
}

type queryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   func() time.Time
}

func newQueryCache(ttl time.Duration, clock func() time.Time) *queryCache {
	return &queryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (qc *queryCache) get(key string) ([]string, bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	entry, ok := qc.entries[key]
	if !ok {
		return nil, false
	}
	if qc.clock().After(entry.expires) {
		delete(qc.entries, key)
		return nil, false
	}
	return entry.phones, true
}

func (qc *queryCache) put(key string, phones []string) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	qc.entries[key] = cacheEntry{
		phones:  phones,
		expires: qc.clock().Add(qc.ttl),
	}
}

func (qc *queryCache) purge() {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.entries = make(map[string]cacheEntry)
}
