package bank

import (
	"context"
	"fmt"
	"time"

	"github.com/standardbeagle/membank/internal/cache"
	"github.com/standardbeagle/membank/internal/debug"
	bankerrors "github.com/standardbeagle/membank/internal/errors"
	"github.com/standardbeagle/membank/internal/fileaccess"
	"github.com/standardbeagle/membank/internal/index"
	"github.com/standardbeagle/membank/internal/types"
)

// ReadResult carries a file's content together with the metadata a
// caller needs to write it back safely.
type ReadResult struct {
	Content    []byte
	Hash       string
	TokenCount int
	Sections   []types.Section
}

// Read returns the current content of a tracked file. The hash in the
// result is what a subsequent Write should cite as expectedHash.
func (b *Bank) Read(ctx context.Context, name string) (*ReadResult, error) {
	content, hash, err := b.layer.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	b.index.RecordAccess(name, types.AccessRead)

	// An external edit shows up as a hash drift between disk and
	// catalog; converge the record now rather than serve stale
	// metadata.
	if rec, gerr := b.index.Get(name); gerr == nil && rec.Hash != hash {
		debug.LogBank("read %s: hash drift, refreshing record\n", name)
		b.cache.InvalidatePrefix("file:" + name + ":")
		if fresh, berr := b.buildRecord(ctx, name); berr == nil {
			fresh.ReadCount = rec.ReadCount
			fresh.WriteCount = rec.WriteCount
			b.index.Upsert(fresh)
		}
	}

	text := string(content)
	count := b.counter.Count(text, hash)

	sectionsKey := "file:" + name + ":sections"
	parsed, ok := cachedSections(b.cache, sectionsKey)
	if !ok {
		parsed = b.parser.Parse(text)
		b.cache.Set(sectionsKey, parsed)
	}

	return &ReadResult{
		Content:    content,
		Hash:       hash,
		TokenCount: count.Tokens,
		Sections:   parsed,
	}, nil
}

// WriteResult reports what a successful write committed.
type WriteResult struct {
	Hash       string
	SizeBytes  int64
	TokenCount int
	Version    int
}

// Write commits new content for a tracked file. With a non-empty
// expectedHash the write is conditional: a mismatch against the
// current on-disk content fails with ConflictError and changes
// nothing. Content carrying version-control conflict markers is
// rejected outright. On success the index record, version history,
// dependency edges, and caches are all brought up to date.
func (b *Bank) Write(ctx context.Context, name string, content []byte, expectedHash string) (*WriteResult, error) {
	if fileaccess.DetectConflictMarkers(content) {
		return nil, fmt.Errorf("%s: content contains unresolved conflict markers; resolve them before writing", name)
	}

	res, err := b.layer.Write(ctx, name, content, expectedHash)
	if err != nil {
		return nil, err
	}

	text := string(content)
	count := b.counter.Count(text, res.Hash)

	version, verr := b.versions.Snapshot(name, content, types.VersionSnapshot{
		Hash:       res.Hash,
		TokenCount: count.Tokens,
	})
	if verr != nil {
		// The content is committed; a failed snapshot degrades history,
		// not correctness.
		debug.LogBank("snapshot %s: %v\n", name, verr)
	}

	rec := &types.TrackedFile{
		Name:         name,
		Hash:         res.Hash,
		FastHash:     res.FastHash,
		SizeBytes:    res.SizeBytes,
		TokenCount:   count.Tokens,
		Sections:     b.parser.Parse(text),
		VersionCount: version,
		LastModified: time.Now(),
		Category:     index.InferCategory(name),
	}
	if prev, gerr := b.index.Get(name); gerr == nil {
		rec.ReadCount = prev.ReadCount
		rec.WriteCount = prev.WriteCount
		rec.Category = prev.Category
		if verr != nil {
			rec.VersionCount = prev.VersionCount
		}
	}
	rec.WriteCount++
	b.index.Upsert(rec)

	b.graph.ReplaceDynamicEdges(name, ExtractLinks(name, text))

	b.cache.InvalidatePrefix("file:" + name + ":")
	b.cache.Invalidate("scan:duplicates")

	if serr := b.index.Save(); serr != nil {
		return nil, fmt.Errorf("content written but index save failed: %w", serr)
	}

	return &WriteResult{
		Hash:       res.Hash,
		SizeBytes:  res.SizeBytes,
		TokenCount: count.Tokens,
		Version:    version,
	}, nil
}

// Delete removes a tracked file, its index record, its graph node, and
// its cached derivations. History is kept until CleanupOrphaned runs;
// an accidental delete can still be recovered from snapshots.
func (b *Bank) Delete(ctx context.Context, name string) error {
	if err := b.layer.Delete(ctx, name); err != nil {
		return err
	}

	b.index.Remove(name)
	b.graph.RemoveNode(name)
	b.cache.InvalidatePrefix("file:" + name + ":")
	b.cache.Invalidate("scan:duplicates")

	return b.index.Save()
}

// Rollback re-commits the content of an old version as a new write.
// It cites the file's current hash, so a concurrent edit between
// reading history and rolling back still surfaces as a conflict; no
// privileged mutation path exists.
func (b *Bank) Rollback(ctx context.Context, name string, version int) (*WriteResult, error) {
	content, err := b.versions.Rollback(name, version)
	if err != nil {
		return nil, err
	}

	_, currentHash, err := b.layer.Read(ctx, name)
	if err != nil && !bankerrors.IsRecoverable(err) {
		return nil, err
	}
	return b.Write(ctx, name, content, currentHash)
}

// UpdateLinks replaces a file's dynamic dependency edges, typically
// from an external link extractor with richer knowledge than the
// built-in markdown scan.
func (b *Bank) UpdateLinks(name string, edges []types.DependencyEdge) {
	b.graph.ReplaceDynamicEdges(name, edges)
	b.cache.Invalidate("graph:order")
}

// List returns the catalog records, sorted by name.
func (b *Bank) List() []*types.TrackedFile {
	return b.index.List()
}

// Get returns one catalog record.
func (b *Bank) Get(name string) (*types.TrackedFile, error) {
	return b.index.Get(name)
}

func cachedSections(c *cache.Cache, key string) ([]types.Section, bool) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	parsed, ok := v.([]types.Section)
	return parsed, ok
}
