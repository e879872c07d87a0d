package cache

import (
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/membank/internal/debug"
)

// Analytics is the persisted usage summary. It lives in its own TOML
// file, separate from the index: losing or corrupting it costs nothing
// but history.
type Analytics struct {
	UpdatedAt time.Time `toml:"updated_at"`
	Hits      int64     `toml:"hits"`
	Misses    int64     `toml:"misses"`
	Evictions int64     `toml:"evictions"`
	HitRate   float64   `toml:"hit_rate"`
	HotKeys   []string  `toml:"hot_keys"`
	Recent    []string  `toml:"recent_keys"`
}

// SnapshotAnalytics captures the current counters and patterns.
func (c *Cache) SnapshotAnalytics() Analytics {
	stats := c.Stats()
	return Analytics{
		UpdatedAt: time.Now(),
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		Evictions: stats.Evictions,
		HitRate:   stats.HitRate(),
		HotKeys:   c.HotKeys(c.cfg.HotKeyCount),
		Recent:    c.RecentKeys(c.cfg.HotKeyCount),
	}
}

// SaveAnalytics writes the usage summary to path. Best effort: a
// failure is logged and swallowed, because analytics must never fail
// an operation that otherwise succeeded. Disabled entirely when
// PersistMetrics is off.
func (c *Cache) SaveAnalytics(path string) {
	if !c.cfg.PersistMetrics {
		return
	}
	snap := c.SnapshotAnalytics()
	data, err := toml.Marshal(snap)
	if err != nil {
		debug.LogCache("analytics marshal: %v\n", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		debug.LogCache("analytics write %s: %v\n", path, err)
	}
}

// LoadAnalytics reads a previously saved summary. A missing or broken
// file yields a zero value and no error; the summary is advisory.
func LoadAnalytics(path string) Analytics {
	var a Analytics
	data, err := os.ReadFile(path)
	if err != nil {
		return a
	}
	if err := toml.Unmarshal(data, &a); err != nil {
		debug.LogCache("analytics parse %s: %v\n", path, err)
		return Analytics{}
	}
	return a
}
