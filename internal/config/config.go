package config

import (
	"time"

	"github.com/standardbeagle/membank/internal/types"
)

// Config holds every tunable of the bank. Each component gets its own
// named struct; all fields have working defaults so an empty
// .membank.kdl (or none at all) produces a usable bank.
type Config struct {
	Root       string
	Storage    Storage
	Lock       Lock
	Versions   Versions
	Cache      Cache
	Duplicates Duplicates
	Watcher    Watcher
	Tokens     Tokens
}

// Storage controls the file-access layer.
type Storage struct {
	// TrackedExtensions decides which files under the root count as
	// bank content. Patterns use doublestar glob syntax.
	TrackedExtensions []string
	MaxFileSize       int64
	FileMode          uint32 // permission bits for written files
}

// Lock controls sentinel-file locking.
type Lock struct {
	Timeout      time.Duration
	PollInterval time.Duration
	// StaleAfter is the age past which a lock whose holder process is
	// gone may be broken by a new writer.
	StaleAfter time.Duration
}

// Versions controls the snapshot store.
type Versions struct {
	MaxPerFile int
}

// Cache controls the two-tier cache.
type Cache struct {
	TTL            time.Duration
	TTLCapacity    int
	LRUCapacity    int
	SweepInterval  time.Duration // 0 disables the background sweeper
	PrefetchLimit  int
	HotKeyCount    int           // top-N for the hot-path warming strategy
	MandatoryKeys  []string      // always warmed by the mandatory strategy
	PersistMetrics bool          // write analytics.toml snapshots
}

// Duplicates controls the duplicate-content detector.
type Duplicates struct {
	MinSectionLength    int
	SimilarityThreshold float64
	// Signature bucketing. These trade recall for speed: pairs whose
	// signatures differ are never compared, even if similar. Tests pin
	// this behavior so retuning is a conscious act.
	LengthBucketSize    int
	WordBucketSize      int
	LeadingWords        int
}

// Watcher controls out-of-band change detection.
type Watcher struct {
	Enabled        bool
	DebounceWindow time.Duration
}

// Tokens controls token counting.
type Tokens struct {
	CacheSize int
}

// Default returns the baseline configuration for a bank rooted at root.
func Default(root string) *Config {
	return &Config{
		Root: root,
		Storage: Storage{
			TrackedExtensions: []string{"*.md"},
			MaxFileSize:       10 * 1024 * 1024,
			FileMode:          0644,
		},
		Lock: Lock{
			Timeout:      types.DefaultLockTimeout,
			PollInterval: types.DefaultLockPollInterval,
			StaleAfter:   5 * time.Minute,
		},
		Versions: Versions{
			MaxPerFile: types.DefaultMaxVersions,
		},
		Cache: Cache{
			TTL:            5 * time.Minute,
			TTLCapacity:    512,
			LRUCapacity:    256,
			SweepInterval:  time.Minute,
			PrefetchLimit:  5,
			HotKeyCount:    10,
			PersistMetrics: true,
		},
		Duplicates: Duplicates{
			MinSectionLength:    types.DefaultMinSectionLength,
			SimilarityThreshold: types.DefaultSimilarityThreshold,
			LengthBucketSize:    64,
			WordBucketSize:      10,
			LeadingWords:        3,
		},
		Watcher: Watcher{
			Enabled:        true,
			DebounceWindow: types.DefaultDebounceWindow,
		},
		Tokens: Tokens{
			CacheSize: 1000,
		},
	}
}
