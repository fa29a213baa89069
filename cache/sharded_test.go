package cache

import (
	"strconv"
	"sync"
	"testing"
)

func TestNewSharded(t *testing.T) {
	c := NewSharded[string, int](100, StringHasher)
	if c == nil {
		t.Fatal("NewSharded returned nil")
	}
	if c.Capacity() != 100 {
		t.Errorf("expected capacity 100, got %d", c.Capacity())
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestNewShardedDefaultCapacity(t *testing.T) {
	c := NewSharded[string, int](0, StringHasher)
	if c.Capacity() != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, c.Capacity())
	}
}

func TestShardedGetSet(t *testing.T) {
	c := NewSharded[string, int](10, StringHasher)

	c.Set("key1", 42)

	val, ok := c.Get("key1")
	if !ok {
		t.Error("expected key1 to exist")
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}

	_, ok = c.Get("nonexistent")
	if ok {
		t.Error("expected nonexistent key to not exist")
	}
}

func TestShardedSetOverwrite(t *testing.T) {
	c := NewSharded[string, int](10, StringHasher)

	c.Set("key", 1)
	c.Set("key", 2)

	val, _ := c.Get("key")
	if val != 2 {
		t.Errorf("expected overwritten value 2, got %d", val)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry after overwrite, got %d", c.Len())
	}
}

func TestShardedDelete(t *testing.T) {
	c := NewSharded[string, int](10, StringHasher)

	c.Set("key", 7)
	val, ok := c.Delete("key")
	if !ok {
		t.Fatal("expected Delete to find entry")
	}
	if val != 7 {
		t.Errorf("expected deleted value 7, got %d", val)
	}
	if _, ok := c.Get("key"); ok {
		t.Error("expected key to be gone after Delete")
	}
	if _, ok := c.Delete("key"); ok {
		t.Error("expected second Delete to return false")
	}
}

func TestShardedEviction(t *testing.T) {
	// All keys hash to the same shard with an identity hasher that
	// masks to shard 0.
	c := NewSharded[uint64, int](2, func(uint64) uint64 { return 0 })

	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3) // evicts key 1 (oldest)

	if _, ok := c.Get(1); ok {
		t.Error("expected key 1 to be evicted")
	}
	if _, ok := c.Get(2); !ok {
		t.Error("expected key 2 to survive")
	}
	if _, ok := c.Get(3); !ok {
		t.Error("expected key 3 to survive")
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("expected 1 eviction, got %d", got)
	}
}

func TestShardedEvictionLRUOrder(t *testing.T) {
	c := NewSharded[uint64, int](2, func(uint64) uint64 { return 0 })

	c.Set(1, 1)
	c.Set(2, 2)
	// Touch key 1 so key 2 becomes the oldest.
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected key 1")
	}
	c.Set(3, 3)

	if _, ok := c.Get(2); ok {
		t.Error("expected key 2 (least recently used) to be evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Error("expected recently used key 1 to survive")
	}
}

func TestShardedEvictionGuard(t *testing.T) {
	pinned := map[uint64]bool{1: true}
	c := NewSharded[uint64, int](2,
		func(uint64) uint64 { return 0 },
		WithEvictionGuard[uint64, int](func(k uint64) bool { return pinned[k] }),
	)

	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3) // key 1 is pinned, so key 2 must be the victim

	if _, ok := c.Get(1); !ok {
		t.Error("expected pinned key 1 to survive eviction")
	}
	if _, ok := c.Get(2); ok {
		t.Error("expected unpinned key 2 to be evicted instead")
	}
}

func TestShardedEvictionGuardAllPinned(t *testing.T) {
	c := NewSharded[uint64, int](2,
		func(uint64) uint64 { return 0 },
		WithEvictionGuard[uint64, int](func(uint64) bool { return true }),
	)

	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3) // nothing evictable: shard exceeds capacity

	if c.Len() != 3 {
		t.Errorf("expected all 3 entries retained while pinned, got %d", c.Len())
	}
	if got := c.Stats().Evictions; got != 0 {
		t.Errorf("expected 0 evictions, got %d", got)
	}
}

func TestShardedEvictCallback(t *testing.T) {
	var evicted []uint64
	c := NewSharded[uint64, int](2,
		func(uint64) uint64 { return 0 },
		WithEvictCallback[uint64, int](func(k uint64, _ int) { evicted = append(evicted, k) }),
	)

	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)

	if len(evicted) != 1 || evicted[0] != 1 {
		t.Errorf("expected evict callback for key 1, got %v", evicted)
	}

	// Clear also invokes the callback for every remaining entry.
	evicted = nil
	c.Clear()
	if len(evicted) != 2 {
		t.Errorf("expected 2 callbacks from Clear, got %d", len(evicted))
	}

	// Delete does not invoke the callback (caller takes ownership).
	evicted = nil
	c.Set(4, 4)
	c.Delete(4)
	if len(evicted) != 0 {
		t.Errorf("expected no callbacks from Delete, got %v", evicted)
	}
}

func TestShardedClear(t *testing.T) {
	c := NewSharded[string, int](10, StringHasher)

	for i := range 20 {
		c.Set(strconv.Itoa(i), i)
	}
	if c.Len() == 0 {
		t.Fatal("expected entries before Clear")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", c.Len())
	}
}

func TestShardedStats(t *testing.T) {
	c := NewSharded[string, int](10, StringHasher)

	c.Set("a", 1)
	c.Get("a")       // hit
	c.Get("missing") // miss

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", stats.HitRate)
	}

	c.ResetStats()
	stats = c.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Error("expected stats reset to zero")
	}
}

func TestShardedConcurrent(t *testing.T) {
	c := NewSharded[string, int](64, StringHasher)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 200 {
				key := strconv.Itoa(g*1000 + i%50)
				c.Set(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() == 0 {
		t.Error("expected entries after concurrent access")
	}
}
