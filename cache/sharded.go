// Package cache provides a generic, concurrency-safe sharded LRU cache
// used by the framegraph executor for node outputs and other derived
// GPU state. Entries can be protected from eviction while in use and a
// release callback can be attached so evicted values free their GPU
// resources.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Default configuration constants.
const (
	// DefaultShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	DefaultShardCount = 16

	// DefaultCapacity is the default maximum entries per shard.
	DefaultCapacity = 256

	// shardMask is used for fast shard selection (DefaultShardCount - 1).
	shardMask = DefaultShardCount - 1
)

// Hasher is a function that computes a hash for a key.
// Used by Sharded for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher returns the key itself as the hash (identity hash).
func Uint64Hasher(u uint64) uint64 {
	return u
}

// Sharded is a thread-safe, sharded LRU cache.
//
// Features:
//   - 16 shards for reduced lock contention
//   - LRU eviction with configurable capacity per shard
//   - Eviction guard: entries reported as in-use are never evicted
//   - Eviction callback for releasing resources held by evicted values
//   - Atomic statistics for monitoring
type Sharded[K comparable, V any] struct {
	shards   [DefaultShardCount]*shard[K, V]
	hasher   Hasher[K]
	capacity int // per-shard capacity

	// guard reports whether a key must not be evicted right now.
	// May be nil. Called with the shard lock held; must not re-enter
	// the cache.
	guard func(K) bool

	// onEvict is called for every entry removed by eviction or Clear
	// (not by Delete). May be nil. Called with the shard lock held;
	// must not re-enter the cache.
	onEvict func(K, V)

	// Statistics (atomic for zero-allocation reads)
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// shard is a single shard of the cache with its own mutex.
type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[K, V]
	lru     *lruList[K]
}

// entry holds a cached value with its LRU node.
type entry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

// Option configures a Sharded cache.
type Option[K comparable, V any] func(*Sharded[K, V])

// WithEvictionGuard installs a predicate that protects keys from
// eviction while it returns true. Guarded entries are skipped when
// scanning for eviction victims; if every entry in a shard is guarded
// the shard temporarily exceeds its capacity rather than evicting.
func WithEvictionGuard[K comparable, V any](guard func(K) bool) Option[K, V] {
	return func(c *Sharded[K, V]) { c.guard = guard }
}

// WithEvictCallback installs a callback invoked for entries removed by
// capacity eviction or Clear. Used to release GPU resources owned by
// cached values.
func WithEvictCallback[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Sharded[K, V]) { c.onEvict = fn }
}

// NewSharded creates a new sharded cache with the specified capacity per
// shard. Total capacity is approximately capacity * DefaultShardCount.
//
// The hasher function is used to compute hash values for shard
// selection. Use StringHasher or Uint64Hasher for common key types.
//
// If capacity <= 0, DefaultCapacity (256) is used.
func NewSharded[K comparable, V any](capacity int, hasher Hasher[K], opts ...Option[K, V]) *Sharded[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &Sharded[K, V]{
		hasher:   hasher,
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(c)
	}

	for i := range c.shards {
		c.shards[i] = &shard[K, V]{
			entries: make(map[K]*entry[K, V]),
			lru:     newLRUList[K](),
		}
	}

	return c
}

// getShard returns the shard for a given key.
func (c *Sharded[K, V]) getShard(key K) *shard[K, V] {
	hash := c.hasher(key)
	return c.shards[hash&shardMask]
}

// Get retrieves a cached value by key.
// Returns (value, true) if found, (zero, false) otherwise.
//
// On cache hit, the entry is moved to the front of the LRU list.
func (c *Sharded[K, V]) Get(key K) (V, bool) {
	s := c.getShard(key)

	// Fast path: read lock to check existence.
	s.mu.RLock()
	_, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	// Slow path: write lock for LRU update.
	s.mu.Lock()
	// Re-check after acquiring write lock (entry may have been evicted).
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.lru.MoveToFront(e.node)
	value := e.value
	s.mu.Unlock()

	c.hits.Add(1)
	return value, true
}

// Set stores a value in the cache.
// If the shard exceeds capacity after insertion, the oldest unguarded
// entries are evicted.
//
// The value is stored as-is (not copied). Callers should not modify it
// after caching.
func (c *Sharded[K, V]) Set(key K, value V) {
	s := c.getShard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok {
		existing.value = value
		s.lru.MoveToFront(existing.node)
		return
	}

	c.evictLocked(s)

	node := s.lru.PushFront(key)
	s.entries[key] = &entry[K, V]{value: value, node: node}
}

// evictLocked evicts oldest unguarded entries until the shard is below
// capacity. Caller holds the shard write lock.
func (c *Sharded[K, V]) evictLocked(s *shard[K, V]) {
	for s.lru.Len() >= c.capacity {
		// Without a guard the oldest entry is always the victim.
		if c.guard == nil {
			key, ok := s.lru.RemoveOldest()
			if !ok {
				return
			}
			e := s.entries[key]
			delete(s.entries, key)
			c.evictions.Add(1)
			if c.onEvict != nil && e != nil {
				c.onEvict(key, e.value)
			}
			continue
		}

		var victim *lruNode[K]
		s.lru.Oldest(func(node *lruNode[K]) bool {
			if c.guard(node.key) {
				return true // protected, keep scanning toward the front
			}
			victim = node
			return false
		})
		if victim == nil {
			// Every entry is in use by the current execution;
			// allow the shard to exceed capacity for now.
			return
		}
		e := s.entries[victim.key]
		s.lru.Remove(victim)
		delete(s.entries, victim.key)
		c.evictions.Add(1)
		if c.onEvict != nil && e != nil {
			c.onEvict(victim.key, e.value)
		}
	}
}

// Delete removes an entry from the cache without invoking the eviction
// callback. Returns the removed value and true if the entry existed.
func (c *Sharded[K, V]) Delete(key K) (V, bool) {
	s := c.getShard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	s.lru.Remove(e.node)
	delete(s.entries, key)
	return e.value, true
}

// Clear removes all entries from the cache, invoking the eviction
// callback for each.
func (c *Sharded[K, V]) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		if c.onEvict != nil {
			for k, e := range s.entries {
				c.onEvict(k, e.value)
			}
		}
		s.entries = make(map[K]*entry[K, V])
		s.lru.Clear()
		s.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards.
func (c *Sharded[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Capacity returns the per-shard capacity.
func (c *Sharded[K, V]) Capacity() int {
	return c.capacity
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	HitRate   float64
	Evictions uint64
}

// Stats returns current cache statistics.
// This operation is mostly lock-free (atomic counters).
func (c *Sharded[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	evictions := c.evictions.Load()

	var hitRate float64
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: evictions,
	}
}

// ResetStats resets all statistics counters to zero.
func (c *Sharded[K, V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}
