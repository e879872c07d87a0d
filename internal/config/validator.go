package config

import (
	"errors"
	"fmt"
)

// Validate checks every section once at load time so components can
// trust their config without re-checking.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("bank root cannot be empty")
	}

	if len(c.Storage.TrackedExtensions) == 0 {
		return errors.New("storage: at least one tracked extension pattern is required")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("storage: MaxFileSize must be positive, got %d", c.Storage.MaxFileSize)
	}

	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("lock: Timeout must be positive, got %v", c.Lock.Timeout)
	}
	if c.Lock.PollInterval <= 0 {
		return fmt.Errorf("lock: PollInterval must be positive, got %v", c.Lock.PollInterval)
	}
	if c.Lock.PollInterval > c.Lock.Timeout {
		return fmt.Errorf("lock: PollInterval %v exceeds Timeout %v", c.Lock.PollInterval, c.Lock.Timeout)
	}

	if c.Versions.MaxPerFile < 1 {
		return fmt.Errorf("versions: MaxPerFile must be at least 1, got %d", c.Versions.MaxPerFile)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache: TTL must be positive, got %v", c.Cache.TTL)
	}
	if c.Cache.TTLCapacity < 1 || c.Cache.LRUCapacity < 1 {
		return fmt.Errorf("cache: tier capacities must be at least 1, got ttl=%d lru=%d",
			c.Cache.TTLCapacity, c.Cache.LRUCapacity)
	}
	if c.Cache.PrefetchLimit < 0 {
		return fmt.Errorf("cache: PrefetchLimit cannot be negative, got %d", c.Cache.PrefetchLimit)
	}

	if c.Duplicates.SimilarityThreshold <= 0 || c.Duplicates.SimilarityThreshold > 1 {
		return fmt.Errorf("duplicates: SimilarityThreshold must be in (0,1], got %v",
			c.Duplicates.SimilarityThreshold)
	}
	if c.Duplicates.MinSectionLength < 0 {
		return fmt.Errorf("duplicates: MinSectionLength cannot be negative, got %d",
			c.Duplicates.MinSectionLength)
	}
	if c.Duplicates.LengthBucketSize < 1 || c.Duplicates.WordBucketSize < 1 {
		return fmt.Errorf("duplicates: bucket sizes must be at least 1, got length=%d word=%d",
			c.Duplicates.LengthBucketSize, c.Duplicates.WordBucketSize)
	}
	if c.Duplicates.LeadingWords < 0 {
		return fmt.Errorf("duplicates: LeadingWords cannot be negative, got %d",
			c.Duplicates.LeadingWords)
	}

	if c.Watcher.Enabled && c.Watcher.DebounceWindow <= 0 {
		return fmt.Errorf("watcher: DebounceWindow must be positive when enabled, got %v",
			c.Watcher.DebounceWindow)
	}

	if c.Tokens.CacheSize < 1 {
		return fmt.Errorf("tokens: CacheSize must be at least 1, got %d", c.Tokens.CacheSize)
	}

	return nil
}
