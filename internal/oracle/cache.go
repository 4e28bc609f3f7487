package oracle

import (
	"sync"
	"time"

	"vault-sentinel/internal/domain"
)

// snapshotCache is a per-pair cache of the last live snapshot.
// Entries use last-writer-wins semantics; a snapshot is a best-effort
// approximation, not a transactional record.
type snapshotCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry // keyed by PairKey
}

type cacheEntry struct {
	snapshot domain.PoolSnapshot
	storedAt time.Time
}

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{
		entries: make(map[string]cacheEntry),
	}
}

// put stores a snapshot for its pair key.
func (c *snapshotCache) put(snap domain.PoolSnapshot, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[snap.Pair] = cacheEntry{snapshot: snap, storedAt: now}
}

// get returns the cached snapshot for a pair key if its age is within ttl.
// Entries older than the TTL are treated as stale and not returned.
func (c *snapshotCache) get(pairKey string, ttl time.Duration, now time.Time) (domain.PoolSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[pairKey]
	if !ok {
		return domain.PoolSnapshot{}, false
	}
	if now.Sub(entry.storedAt) > ttl {
		return domain.PoolSnapshot{}, false
	}
	return entry.snapshot, true
}
