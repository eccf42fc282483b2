package application

import (
	"strings"
	"sync"
	"time"
)

// recordCache keeps recent record listings per user so that the status and
// history screens, which poll, do not hit the store on every refresh. Any
// mutation for a user drops that user's entries and bumps the user's
// generation, so a listing read before the mutation is never stored after it.
type recordCache struct {
	mu          sync.RWMutex
	now         func() time.Time
	ttl         time.Duration
	maxEntries  int
	entries     map[string]recordCacheEntry
	generations map[string]uint64
}

type recordCacheEntry struct {
	userID    string
	records   []Record
	expiresAt time.Time
}

func newRecordCache(ttl time.Duration, maxEntries int, now func() time.Time) *recordCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &recordCache{
		now:         now,
		ttl:         ttl,
		maxEntries:  maxEntries,
		entries:     make(map[string]recordCacheEntry),
		generations: make(map[string]uint64),
	}
}

func (c *recordCache) Get(key string) ([]Record, bool) {
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
	return cloneRecords(entry.records), true
}

// Generation returns the invalidation counter of userID. Capture it before
// reading from the store and hand it to Store.
func (c *recordCache) Generation(userID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[userID]
}

// Store caches records under key unless userID was invalidated since
// generation was captured.
func (c *recordCache) Store(key, userID string, generation uint64, records []Record) {
	if c == nil {
		return
	}
	cloned := cloneRecords(records)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[userID] != generation {
		return
	}

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = recordCacheEntry{userID: userID, records: cloned, expiresAt: expiry}
}

// InvalidateUser drops every listing cached for userID.
func (c *recordCache) InvalidateUser(userID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[userID]++
	for key, entry := range c.entries {
		if entry.userID == userID {
			delete(c.entries, key)
		}
	}
}

func (c *recordCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *recordCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, record := range records {
		out[i] = record.Clone()
	}
	return out
}

func recordCacheKey(userID string, query RecordQuery) string {
	var builder strings.Builder
	builder.WriteString(userID)
	builder.WriteString("|")
	builder.WriteString(string(query.Filter))
	builder.WriteString("|")
	if !query.Since.IsZero() {
		builder.WriteString(query.Since.String())
	}
	return builder.String()
}
