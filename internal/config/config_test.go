package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default("/tmp/bank")
	require.NoError(t, cfg.Validate())
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"*.md"}, cfg.Storage.TrackedExtensions)
	assert.Equal(t, 30*time.Second, cfg.Lock.Timeout)
	assert.Equal(t, 10, cfg.Versions.MaxPerFile)
	assert.Equal(t, 0.85, cfg.Duplicates.SimilarityThreshold)
}

func TestLoadParsesKDLOverrides(t *testing.T) {
	dir := t.TempDir()
	kdl := `
storage {
    tracked_extensions "*.md" "*.txt"
    max_file_size 1048576
}
lock {
    timeout_ms 5000
    poll_interval_ms 50
}
versions {
    max_per_file 3
}
cache {
    ttl_ms 60000
    lru_capacity 32
    mandatory_keys "projectbrief.md" "activeContext.md"
}
duplicates {
    similarity_threshold 0.9
    min_section_length 20
}
watcher {
    enabled false
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(kdl), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"*.md", "*.txt"}, cfg.Storage.TrackedExtensions)
	assert.Equal(t, int64(1048576), cfg.Storage.MaxFileSize)
	assert.Equal(t, 5*time.Second, cfg.Lock.Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Lock.PollInterval)
	assert.Equal(t, 3, cfg.Versions.MaxPerFile)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 32, cfg.Cache.LRUCapacity)
	assert.Equal(t, []string{"projectbrief.md", "activeContext.md"}, cfg.Cache.MandatoryKeys)
	assert.Equal(t, 0.9, cfg.Duplicates.SimilarityThreshold)
	assert.Equal(t, 20, cfg.Duplicates.MinSectionLength)
	assert.False(t, cfg.Watcher.Enabled)
}

func TestLoadRejectsMalformedKDL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`storage { unterminated`), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero lock timeout", func(c *Config) { c.Lock.Timeout = 0 }},
		{"poll exceeds timeout", func(c *Config) { c.Lock.PollInterval = c.Lock.Timeout * 2 }},
		{"zero versions", func(c *Config) { c.Versions.MaxPerFile = 0 }},
		{"threshold above one", func(c *Config) { c.Duplicates.SimilarityThreshold = 1.5 }},
		{"no tracked extensions", func(c *Config) { c.Storage.TrackedExtensions = nil }},
		{"zero cache capacity", func(c *Config) { c.Cache.LRUCapacity = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default("/tmp/bank")
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFileExplicitPath(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "custom.kdl")
	require.NoError(t, os.WriteFile(path, []byte("lock {\n    timeout_ms 5000\n}\n"), 0644))

	cfg, err := LoadFile(root, path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Lock.Timeout)

	// The default .membank.kdl under root is not consulted.
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName),
		[]byte("lock {\n    timeout_ms 1000\n}\n"), 0644))
	cfg, err = LoadFile(root, path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Lock.Timeout)
}

func TestLoadFileMissingIsError(t *testing.T) {
	_, err := LoadFile(t.TempDir(), filepath.Join(t.TempDir(), "nope.kdl"))
	assert.Error(t, err)
}
