package cache

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/membank/internal/debug"
)

// Loader produces the value for a key that is not yet cached.
type Loader func(key string) (interface{}, error)

// Warm loads each key through loader and caches the result. Best
// effort throughout: a key that fails to load is skipped, already
// cached keys are left alone, and the return value is how many keys
// were actually loaded and stored.
func (c *Cache) Warm(keys []string, loader Loader) int {
	if loader == nil || len(keys) == 0 {
		return 0
	}

	type loaded struct {
		key   string
		value interface{}
	}
	results := make(chan loaded, len(keys))

	var g errgroup.Group
	g.SetLimit(4)
	for _, key := range keys {
		if _, ok := c.Peek(key); ok {
			continue
		}
		key := key
		g.Go(func() error {
			value, err := loader(key)
			if err != nil {
				debug.LogCache("warm %s: %v\n", key, err)
				return nil // per-key failure never aborts the batch
			}
			results <- loaded{key, value}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	count := 0
	for r := range results {
		c.Set(r.key, r.value)
		count++
	}
	return count
}

// PrefetchRelated warms keys that are frequently accessed right after
// key and are not cached yet, up to the configured prefetch limit.
func (c *Cache) PrefetchRelated(key string, loader Loader) int {
	limit := c.cfg.PrefetchLimit
	if limit <= 0 {
		limit = 5
	}

	var candidates []string
	for _, related := range c.CoAccessed(key, 0) {
		if _, ok := c.Peek(related); ok {
			continue
		}
		candidates = append(candidates, related)
		if len(candidates) == limit {
			break
		}
	}
	return c.Warm(candidates, loader)
}

// Strategy names one source of keys worth warming. Keys is consulted
// at run time so strategies see current access patterns.
type Strategy struct {
	Name string
	Keys func() []string
}

// WarmupReport is the outcome of one strategy's run.
type WarmupReport struct {
	Strategy string
	Warmed   int
	Elapsed  time.Duration
	Err      error
}

// Mandatory always warms the configured critical keys.
func (c *Cache) Mandatory() Strategy {
	return Strategy{
		Name: "mandatory",
		Keys: func() []string { return c.cfg.MandatoryKeys },
	}
}

// HotPath warms the most frequently accessed keys.
func (c *Cache) HotPath() Strategy {
	return Strategy{
		Name: "hot-path",
		Keys: func() []string { return c.HotKeys(c.cfg.HotKeyCount) },
	}
}

// Dependency warms keys ranked by how many others depend on them. The
// ranking comes from the caller, which owns the dependency graph.
func (c *Cache) Dependency(rank func() []string) Strategy {
	return Strategy{Name: "dependency", Keys: rank}
}

// Recent warms the most recently accessed keys.
func (c *Cache) Recent() Strategy {
	return Strategy{
		Name: "recent",
		Keys: func() []string { return c.RecentKeys(c.cfg.HotKeyCount) },
	}
}

// RunWarmup executes strategies in order. Each runs independently: a
// panic or empty key list in one never stops the rest, and every
// strategy reports how many items it warmed and how long it took.
func (c *Cache) RunWarmup(strategies []Strategy, loader Loader) []WarmupReport {
	reports := make([]WarmupReport, 0, len(strategies))
	for _, s := range strategies {
		reports = append(reports, c.runStrategy(s, loader))
	}
	return reports
}

func (c *Cache) runStrategy(s Strategy, loader Loader) (report WarmupReport) {
	report.Strategy = s.Name
	start := time.Now()
	defer func() {
		report.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("warming strategy %s panicked: %v", s.Name, r)
			debug.LogCache("%v\n", report.Err)
		}
	}()

	if s.Keys == nil {
		return report
	}
	report.Warmed = c.Warm(s.Keys(), loader)
	debug.LogCache("strategy %s warmed %d keys in %v\n", s.Name, report.Warmed, time.Since(start))
	return report
}
