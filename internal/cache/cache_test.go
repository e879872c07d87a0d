package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/membank/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() config.Cache {
	cfg := config.Default("").Cache
	cfg.SweepInterval = 0 // tests drive cleanup explicitly
	return cfg
}

func newTestCache(t *testing.T, cfg config.Cache) *Cache {
	t.Helper()
	c := New(cfg)
	t.Cleanup(c.Close)
	return c
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t, testConfig())

	c.Set("sections:a.md", []string{"Intro", "Usage"})
	got, ok := c.Get("sections:a.md")
	require.True(t, ok)
	assert.Equal(t, []string{"Intro", "Usage"}, got)

	_, ok = c.Get("never-set")
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = 30 * time.Millisecond
	cfg.LRUCapacity = 0 // TTL tier only, so expiry is observable
	c := newTestCache(t, cfg)

	c.Set("k", "v")
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire after TTL")
}

func TestLRUHitPromotesToTTL(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = 30 * time.Millisecond
	c := newTestCache(t, cfg)

	c.Set("k", "v")
	time.Sleep(50 * time.Millisecond)

	// TTL copy has expired; the LRU copy serves the hit and the value
	// migrates back into the TTL tier.
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	got, ok = c.Get("k")
	require.True(t, ok, "promoted entry should be fresh in the TTL tier again")
	assert.Equal(t, "v", got)
}

func TestLRUEviction(t *testing.T) {
	cfg := testConfig()
	cfg.LRUCapacity = 2
	cfg.TTLCapacity = 2
	cfg.TTL = time.Nanosecond // force all hits through the LRU tier
	c := newTestCache(t, cfg)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // a is now most recent
	c.Set("c", 3)     // evicts b

	_, ok := c.Peek("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Peek("a")
	assert.True(t, ok)
	_, ok = c.Peek("c")
	assert.True(t, ok)
	assert.Greater(t, c.Stats().Evictions, int64(0))
}

func TestInvalidateRemovesFromBothTiers(t *testing.T) {
	c := newTestCache(t, testConfig())

	c.Set("k", "v")
	c.Invalidate("k")

	_, ok := c.Peek("k")
	assert.False(t, ok)
}

func TestInvalidatePrefix(t *testing.T) {
	c := newTestCache(t, testConfig())

	c.Set("file:a.md:sections", 1)
	c.Set("file:a.md:tokens", 2)
	c.Set("file:b.md:sections", 3)

	c.InvalidatePrefix("file:a.md:")

	_, ok := c.Peek("file:a.md:sections")
	assert.False(t, ok)
	_, ok = c.Peek("file:a.md:tokens")
	assert.False(t, ok)
	_, ok = c.Peek("file:b.md:sections")
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	c := newTestCache(t, testConfig())
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()
	assert.Zero(t, c.Stats().Size)
}

func TestHitRate(t *testing.T) {
	c := newTestCache(t, testConfig())
	assert.Zero(t, c.Stats().HitRate(), "no requests yet means rate 0")

	c.Set("k", "v")
	_, _ = c.Get("k")
	_, _ = c.Get("k")
	_, _ = c.Get("missing")
	_, _ = c.Get("missing2")

	assert.InDelta(t, 0.5, c.Stats().HitRate(), 1e-9)
}

func TestCleanupExpired(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = 10 * time.Millisecond
	c := newTestCache(t, cfg)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(30 * time.Millisecond)
	c.Set("fresh", 3)

	assert.Equal(t, 2, c.CleanupExpired())
	assert.Equal(t, 0, c.CleanupExpired())
}

func TestBackgroundSweeperStops(t *testing.T) {
	cfg := testConfig()
	cfg.SweepInterval = 5 * time.Millisecond
	cfg.TTL = time.Millisecond
	c := New(cfg)

	c.Set("k", "v")
	time.Sleep(25 * time.Millisecond)
	c.Close()
	c.Close() // idempotent
}

func TestHotKeys(t *testing.T) {
	c := newTestCache(t, testConfig())

	for i := 0; i < 5; i++ {
		_, _ = c.Get("hot")
	}
	for i := 0; i < 2; i++ {
		_, _ = c.Get("warm")
	}
	_, _ = c.Get("cold")

	assert.Equal(t, []string{"hot", "warm", "cold"}, c.HotKeys(3))
	assert.Equal(t, []string{"hot"}, c.HotKeys(1))
}

func TestWarmSkipsFailuresAndCached(t *testing.T) {
	c := newTestCache(t, testConfig())
	c.Set("already", "cached")

	loads := 0
	n := c.Warm([]string{"already", "good", "bad"}, func(key string) (interface{}, error) {
		loads++
		if key == "bad" {
			return nil, errors.New("load failed")
		}
		return "value:" + key, nil
	})

	assert.Equal(t, 1, n, "only the loadable uncached key counts")
	assert.Equal(t, 2, loads, "cached keys are not re-loaded")

	got, ok := c.Peek("good")
	require.True(t, ok)
	assert.Equal(t, "value:good", got)
}

func TestPrefetchRelated(t *testing.T) {
	cfg := testConfig()
	cfg.PrefetchLimit = 2
	c := newTestCache(t, cfg)

	// Build a co-access pattern: main is always followed by r1..r3.
	for i := 0; i < 3; i++ {
		_, _ = c.Get("main")
		_, _ = c.Get(fmt.Sprintf("r%d", i+1))
	}

	n := c.PrefetchRelated("main", func(key string) (interface{}, error) {
		return "v", nil
	})
	assert.Equal(t, 2, n, "prefetch respects the limit")
}

func TestRunWarmupIsolatesStrategies(t *testing.T) {
	cfg := testConfig()
	cfg.MandatoryKeys = []string{"projectbrief.md"}
	c := newTestCache(t, cfg)

	exploding := Strategy{Name: "exploding", Keys: func() []string { panic("boom") }}

	reports := c.RunWarmup(
		[]Strategy{exploding, c.Mandatory()},
		func(key string) (interface{}, error) { return "v", nil },
	)

	require.Len(t, reports, 2)
	assert.Error(t, reports[0].Err)
	assert.NoError(t, reports[1].Err)
	assert.Equal(t, 1, reports[1].Warmed, "a failing strategy must not abort the rest")

	_, ok := c.Peek("projectbrief.md")
	assert.True(t, ok)
}

func TestDependencyStrategyUsesCallerRanking(t *testing.T) {
	c := newTestCache(t, testConfig())

	s := c.Dependency(func() []string { return []string{"core.md"} })
	reports := c.RunWarmup([]Strategy{s}, func(key string) (interface{}, error) {
		return "v", nil
	})
	assert.Equal(t, 1, reports[0].Warmed)
}

func TestAnalyticsRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.PersistMetrics = true
	c := newTestCache(t, cfg)

	c.Set("k", "v")
	_, _ = c.Get("k")
	_, _ = c.Get("miss")

	path := filepath.Join(t.TempDir(), "analytics.toml")
	c.SaveAnalytics(path)

	a := LoadAnalytics(path)
	assert.Equal(t, int64(1), a.Hits)
	assert.Equal(t, int64(1), a.Misses)
	assert.InDelta(t, 0.5, a.HitRate, 1e-9)
	assert.Contains(t, a.HotKeys, "k")
}

func TestAnalyticsBestEffort(t *testing.T) {
	// A missing file loads as a zero value, never an error.
	a := LoadAnalytics(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Zero(t, a.Hits)

	// A broken file does too.
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0644))
	a = LoadAnalytics(path)
	assert.Zero(t, a.Hits)
}
