// Package cache fronts the bank's derived computations with a
// two-tier store: a TTL tier for fresh values and a bounded LRU tier
// that catches overflow and keeps warm values alive past their TTL.
// Access patterns are tracked so warming and prefetch can act on real
// usage instead of guesses.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/membank/internal/config"
	"github.com/standardbeagle/membank/internal/debug"
)

// Stats are the cache's running counters. Size is the live entry count
// across both tiers at read time; the rest accumulate monotonically.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// HitRate is hits/(hits+misses), 0 before any request.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type ttlEntry struct {
	value      interface{}
	insertedAt time.Time
}

type lruEntry struct {
	key   string
	value interface{}
}

// Cache is the combined two-tier store. Safe for concurrent use.
type Cache struct {
	mu  sync.Mutex
	cfg config.Cache

	ttl map[string]ttlEntry

	lru      *list.List // front = most recent
	lruIndex map[string]*list.Element

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	tracker *tracker

	sweepStop chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// New creates a cache. When cfg.SweepInterval is positive a background
// goroutine sweeps expired TTL entries; Close stops it.
func New(cfg config.Cache) *Cache {
	c := &Cache{
		cfg:      cfg,
		ttl:      map[string]ttlEntry{},
		lru:      list.New(),
		lruIndex: map[string]*list.Element{},
		tracker:  newTracker(),
	}
	if cfg.SweepInterval > 0 {
		c.sweepStop = make(chan struct{})
		c.sweepDone = make(chan struct{})
		go c.sweepLoop()
	}
	return c
}

// Get looks up key in the TTL tier first, then the LRU tier. An LRU
// hit is promoted back into the TTL tier so hot values migrate to the
// faster path. Every call, hit or miss, feeds the access tracker.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracker.record(key)

	if e, ok := c.ttl[key]; ok {
		if time.Since(e.insertedAt) <= c.cfg.TTL {
			c.hits.Add(1)
			return e.value, true
		}
		// Lazy expiry: drop it now rather than wait for the sweep.
		delete(c.ttl, key)
	}

	if el, ok := c.lruIndex[key]; ok {
		c.lru.MoveToFront(el)
		value := el.Value.(*lruEntry).value
		c.setTTLLocked(key, value)
		c.hits.Add(1)
		return value, true
	}

	c.misses.Add(1)
	return nil, false
}

// Peek is Get without tracking or promotion, for internal checks that
// must not distort access statistics.
func (c *Cache) Peek(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.ttl[key]; ok && time.Since(e.insertedAt) <= c.cfg.TTL {
		return e.value, true
	}
	if el, ok := c.lruIndex[key]; ok {
		return el.Value.(*lruEntry).value, true
	}
	return nil, false
}

// Set stores the value in both tiers.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTTLLocked(key, value)
	c.setLRULocked(key, value)
}

func (c *Cache) setTTLLocked(key string, value interface{}) {
	if c.cfg.TTLCapacity > 0 && len(c.ttl) >= c.cfg.TTLCapacity {
		if _, exists := c.ttl[key]; !exists {
			c.evictOldestTTLLocked()
		}
	}
	c.ttl[key] = ttlEntry{value: value, insertedAt: time.Now()}
}

func (c *Cache) evictOldestTTLLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.ttl {
		if first || e.insertedAt.Before(oldest) {
			oldestKey, oldest, first = k, e.insertedAt, false
		}
	}
	if !first {
		delete(c.ttl, oldestKey)
		c.evictions.Add(1)
	}
}

func (c *Cache) setLRULocked(key string, value interface{}) {
	if el, ok := c.lruIndex[key]; ok {
		el.Value.(*lruEntry).value = value
		c.lru.MoveToFront(el)
		return
	}
	if c.cfg.LRUCapacity > 0 && c.lru.Len() >= c.cfg.LRUCapacity {
		back := c.lru.Back()
		if back != nil {
			c.lru.Remove(back)
			delete(c.lruIndex, back.Value.(*lruEntry).key)
			c.evictions.Add(1)
		}
	}
	c.lruIndex[key] = c.lru.PushFront(&lruEntry{key: key, value: value})
}

// Invalidate removes key from both tiers. Safe for absent keys.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.ttl, key)
	if el, ok := c.lruIndex[key]; ok {
		c.lru.Remove(el)
		delete(c.lruIndex, key)
	}
}

// InvalidatePrefix removes every key beginning with prefix from both
// tiers, used when one file's change invalidates all derived values
// keyed under it.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.ttl {
		if hasPrefix(k, prefix) {
			delete(c.ttl, k)
		}
	}
	for k, el := range c.lruIndex {
		if hasPrefix(k, prefix) {
			c.lru.Remove(el)
			delete(c.lruIndex, k)
		}
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Clear empties both tiers. Counters and access patterns survive.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ttl = map[string]ttlEntry{}
	c.lru.Init()
	c.lruIndex = map[string]*list.Element{}
}

// CleanupExpired removes TTL entries past their deadline and returns
// how many were dropped.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.ttl {
		if time.Since(e.insertedAt) > c.cfg.TTL {
			delete(c.ttl, k)
			removed++
		}
	}
	return removed
}

func (c *Cache) sweepLoop() {
	defer close(c.sweepDone)
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				debug.LogCache("sweep removed %d expired entries\n", n)
			}
		case <-c.sweepStop:
			return
		}
	}
}

// Close stops the background sweeper. Idempotent; a cache without a
// sweeper closes trivially.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		if c.sweepStop != nil {
			close(c.sweepStop)
			<-c.sweepDone
		}
	})
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := len(c.ttl) + c.lru.Len()
	c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
	}
}

// HotKeys returns the n most frequently accessed keys, descending.
func (c *Cache) HotKeys(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.hotKeys(n)
}

// RecentKeys returns the n most recently accessed keys, newest first.
func (c *Cache) RecentKeys(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.recentKeys(n)
}

// CoAccessed returns keys most often accessed adjacently to key.
func (c *Cache) CoAccessed(key string, n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.coAccessed(key, n)
}
