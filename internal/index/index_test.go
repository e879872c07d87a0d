package index

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bankerrors "github.com/standardbeagle/membank/internal/errors"
	"github.com/standardbeagle/membank/internal/types"
)

func record(name string, tokens int, size int64) *types.TrackedFile {
	return &types.TrackedFile{
		Name:         name,
		Hash:         "hash-" + name,
		SizeBytes:    size,
		TokenCount:   tokens,
		LastModified: time.Now(),
		Category:     InferCategory(name),
	}
}

func TestUpsertGetRemove(t *testing.T) {
	ix := New(t.TempDir(), 0644)

	ix.Upsert(record("projectbrief.md", 100, 400))
	ix.Upsert(record("progress.md", 50, 200))

	rec, err := ix.Get("projectbrief.md")
	require.NoError(t, err)
	assert.Equal(t, types.CategoryCore, rec.Category)

	totals := ix.Totals()
	assert.Equal(t, 2, totals.Files)
	assert.Equal(t, int64(600), totals.Bytes)
	assert.Equal(t, 150, totals.Tokens)

	ix.Remove("progress.md")
	totals = ix.Totals()
	assert.Equal(t, 1, totals.Files)
	assert.Equal(t, 100, totals.Tokens)

	_, err = ix.Get("progress.md")
	assert.True(t, errors.Is(err, bankerrors.ErrNotFound))
}

func TestGetReturnsClone(t *testing.T) {
	ix := New(t.TempDir(), 0644)
	ix.Upsert(record("notes.md", 10, 20))

	first, err := ix.Get("notes.md")
	require.NoError(t, err)
	first.TokenCount = 9999

	second, err := ix.Get("notes.md")
	require.NoError(t, err)
	assert.Equal(t, 10, second.TokenCount, "mutating a returned record must not touch index state")
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	ix := New(dir, 0644)
	ix.Upsert(record("activeContext.md", 42, 168))
	require.NoError(t, ix.Save())
	assert.False(t, ix.Dirty())

	reloaded := New(dir, 0644)
	require.NoError(t, reloaded.Load(nil))

	rec, err := reloaded.Get("activeContext.md")
	require.NoError(t, err)
	assert.Equal(t, 42, rec.TokenCount)
	assert.Equal(t, "hash-activeContext.md", rec.Hash)
	assert.Equal(t, ix.Totals(), reloaded.Totals())
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	ix := New(t.TempDir(), 0644)
	require.NoError(t, ix.Load(nil))
	assert.Empty(t, ix.List())
}

func TestCorruptIndexRecovery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, types.IndexFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json at all"), 0644))

	rebuilt := map[string]*types.TrackedFile{
		"recovered.md": record("recovered.md", 7, 30),
	}
	ix := New(dir, 0644)
	err := ix.Load(func() (map[string]*types.TrackedFile, error) {
		return rebuilt, nil
	})

	// Recovery reports the corruption but leaves a usable index.
	require.Error(t, err)
	assert.True(t, errors.Is(err, bankerrors.ErrCorruptIndex))

	rec, gerr := ix.Get("recovered.md")
	require.NoError(t, gerr)
	assert.Equal(t, 7, rec.TokenCount)

	// The broken file was moved aside, not destroyed.
	matches, _ := filepath.Glob(path + ".corrupt.*")
	require.Len(t, matches, 1)
	raw, _ := os.ReadFile(matches[0])
	assert.Equal(t, "{not json at all", string(raw))

	// The rebuilt index was persisted and loads cleanly next time.
	again := New(dir, 0644)
	require.NoError(t, again.Load(nil))
	assert.True(t, again.Has("recovered.md"))
}

func TestSchemaMigration(t *testing.T) {
	dir := t.TempDir()
	v1 := map[string]interface{}{
		"schema_version": 1,
		"files": map[string]interface{}{
			"projectbrief.md": map[string]interface{}{
				"name": "projectbrief.md", "hash": "abc", "size_bytes": 10, "token_count": 3,
			},
			"scratch.md": map[string]interface{}{
				"name": "scratch.md", "hash": "def", "size_bytes": 5, "token_count": 1,
			},
		},
	}
	data, err := json.Marshal(v1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, types.IndexFileName), data, 0644))

	ix := New(dir, 0644)
	require.NoError(t, ix.Load(nil))

	brief, err := ix.Get("projectbrief.md")
	require.NoError(t, err)
	assert.Equal(t, types.CategoryCore, brief.Category)

	scratch, err := ix.Get("scratch.md")
	require.NoError(t, err)
	assert.Equal(t, types.CategoryCustom, scratch.Category)
	assert.True(t, ix.Dirty(), "migration should mark the index for saving")
}

func TestNewerSchemaRefused(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"schema_version": 99, "files": {}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, types.IndexFileName), data, 0644))

	ix := New(dir, 0644)
	err := ix.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version")
}

func TestRecordAccess(t *testing.T) {
	ix := New(t.TempDir(), 0644)
	ix.Upsert(record("notes.md", 1, 1))

	ix.RecordAccess("notes.md", types.AccessRead)
	ix.RecordAccess("notes.md", types.AccessRead)
	ix.RecordAccess("notes.md", types.AccessWrite)
	ix.RecordAccess("ghost.md", types.AccessRead) // unknown names are ignored

	rec, err := ix.Get("notes.md")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.ReadCount)
	assert.Equal(t, int64(1), rec.WriteCount)
}

func TestListSorted(t *testing.T) {
	ix := New(t.TempDir(), 0644)
	for _, name := range []string{"zeta.md", "alpha.md", "mid.md"} {
		ix.Upsert(record(name, 1, 1))
	}

	var names []string
	for _, rec := range ix.List() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"alpha.md", "mid.md", "zeta.md"}, names)
	assert.Equal(t, names, ix.Names())
}
