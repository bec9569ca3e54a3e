package rebar

import (
	"sync"
	"time"
)

// cacheKey uniquely identifies a permission check. All fields are part of
// the key; the cache is exact-match only.
type cacheKey struct {
	SubjectType     ObjectType
	SubjectID       string
	SubjectRelation Relation
	Relation        Relation
	ObjectType      ObjectType
	ObjectID        string
}

// cacheEntry stores the result of a permission check. Denied checks are
// cached too; repeated "no" answers are the common case.
type cacheEntry struct {
	allowed   bool
	expiresAt time.Time // zero means no expiry
}

// Cache stores permission check results. It is safe for concurrent use
// from multiple goroutines. Implementations should cache both allowed
// and denied results.
type Cache interface {
	// Get retrieves a cached result. If found is false, the entry does
	// not exist or is expired.
	Get(subject Subject, relation Relation, object Object) (allowed bool, found bool)

	// Set stores a permission check result.
	Set(subject Subject, relation Relation, object Object, allowed bool)
}

// CacheImpl is the default in-memory cache with optional TTL. The cache
// grows unbounded within its TTL window; for long-running processes with
// large permission sets, configure a TTL or clear periodically - and
// clear after share mutations that must be visible immediately.
type CacheImpl struct {
	mu    sync.RWMutex
	items map[cacheKey]cacheEntry
	ttl   time.Duration // 0 means no expiry
}

// CacheOption configures a Cache.
type CacheOption func(*CacheImpl)

// WithTTL sets the time-to-live for cache entries. A TTL of 0 (default)
// means entries never expire within the cache's lifetime.
//
// Choose TTL based on permission volatility: seconds for frequently
// changing shares, minutes for typical applications.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CacheImpl) {
		c.ttl = ttl
	}
}

// NewCache creates a new permission cache, scoped to a single process.
func NewCache(opts ...CacheOption) *CacheImpl {
	c := &CacheImpl{
		items: make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CacheImpl) key(subject Subject, relation Relation, object Object) cacheKey {
	return cacheKey{
		SubjectType:     subject.Object.Type,
		SubjectID:       subject.Object.ID,
		SubjectRelation: subject.Relation,
		Relation:        relation,
		ObjectType:      object.Type,
		ObjectID:        object.ID,
	}
}

// Get retrieves a cached permission check result.
func (c *CacheImpl) Get(subject Subject, relation Relation, object Object) (bool, bool) {
	key := c.key(subject, relation, object)

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return false, false
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return false, false
	}

	return entry.allowed, true
}

// Set stores a permission check result in the cache.
func (c *CacheImpl) Set(subject Subject, relation Relation, object Object, allowed bool) {
	entry := cacheEntry{allowed: allowed}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	c.items[c.key(subject, relation, object)] = entry
	c.mu.Unlock()
}

// Size returns the number of entries in the cache.
func (c *CacheImpl) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries. Call after tuple writes whose effect must be
// visible to subsequent checks through this cache.
func (c *CacheImpl) Clear() {
	c.mu.Lock()
	c.items = make(map[cacheKey]cacheEntry)
	c.mu.Unlock()
}

// Ensure CacheImpl implements Cache.
var _ Cache = (*CacheImpl)(nil)
