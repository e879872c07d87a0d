package cache

import (
	"sort"
	"time"
)

// tracker records access patterns: per-key frequency, recency, and
// which keys tend to be touched right after which. All methods assume
// the cache's lock is held.
type tracker struct {
	frequency  map[string]int64
	lastAccess map[string]time.Time
	// coAccess[a][b] counts accesses of b immediately following a.
	coAccess map[string]map[string]int64
	prevKey  string
}

func newTracker() *tracker {
	return &tracker{
		frequency:  map[string]int64{},
		lastAccess: map[string]time.Time{},
		coAccess:   map[string]map[string]int64{},
	}
}

func (t *tracker) record(key string) {
	t.frequency[key]++
	t.lastAccess[key] = time.Now()

	if t.prevKey != "" && t.prevKey != key {
		if t.coAccess[t.prevKey] == nil {
			t.coAccess[t.prevKey] = map[string]int64{}
		}
		t.coAccess[t.prevKey][key]++
	}
	t.prevKey = key
}

type keyCount struct {
	key   string
	count int64
}

func topKeys(counts map[string]int64, n int) []string {
	ranked := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, keyCount{k, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].key < ranked[j].key
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, kc := range ranked {
		out[i] = kc.key
	}
	return out
}

func (t *tracker) hotKeys(n int) []string {
	return topKeys(t.frequency, n)
}

func (t *tracker) recentKeys(n int) []string {
	type keyTime struct {
		key string
		at  time.Time
	}
	ranked := make([]keyTime, 0, len(t.lastAccess))
	for k, at := range t.lastAccess {
		ranked = append(ranked, keyTime{k, at})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].at.Equal(ranked[j].at) {
			return ranked[i].at.After(ranked[j].at)
		}
		return ranked[i].key < ranked[j].key
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, kt := range ranked {
		out[i] = kt.key
	}
	return out
}

func (t *tracker) coAccessed(key string, n int) []string {
	return topKeys(t.coAccess[key], n)
}
