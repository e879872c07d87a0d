// Package index maintains the durable catalog of tracked files: one
// JSON document under the bank root mapping file names to their
// metadata records, plus aggregate totals. The index is the bank's
// source of truth for what exists and what state it was last committed
// in; content itself stays in the tracked files.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/standardbeagle/membank/internal/debug"
	bankerrors "github.com/standardbeagle/membank/internal/errors"
	"github.com/standardbeagle/membank/internal/types"
)

// SchemaVersion is bumped whenever the persisted shape changes.
// Version 1 predates fast hashes and categories; loading a v1 index
// migrates it in place.
const SchemaVersion = 2

// RebuildFunc recomputes the full set of tracked-file records from
// disk. Supplied by the coordinator so the index stays ignorant of
// parsing and token counting.
type RebuildFunc func() (map[string]*types.TrackedFile, error)

// Totals are the aggregates kept alongside the per-file records.
type Totals struct {
	Files  int   `json:"files"`
	Bytes  int64 `json:"bytes"`
	Tokens int   `json:"tokens"`
}

// document is the persisted shape of the index file.
type document struct {
	SchemaVersion int                           `json:"schema_version"`
	UpdatedAt     time.Time                     `json:"updated_at"`
	Totals        Totals                        `json:"totals"`
	Files         map[string]*types.TrackedFile `json:"files"`
}

// Index is the in-memory catalog backed by memory-bank.index.json.
// All methods are safe for concurrent use. Records handed out by Get
// and List are clones; records passed to Upsert are cloned on the way
// in, so callers can never mutate index state through a shared pointer.
type Index struct {
	mu       sync.RWMutex
	path     string
	fileMode os.FileMode
	doc      document
	dirty    bool
}

// New creates an index persisted at dir/memory-bank.index.json.
// Nothing is read from disk until Load.
func New(dir string, fileMode os.FileMode) *Index {
	return &Index{
		path:     filepath.Join(dir, types.IndexFileName),
		fileMode: fileMode,
		doc: document{
			SchemaVersion: SchemaVersion,
			Files:         map[string]*types.TrackedFile{},
		},
	}
}

// Path returns the on-disk location of the index file.
func (ix *Index) Path() string { return ix.path }

// Load reads the index from disk. A missing file yields an empty index.
// An unreadable or unparsable file is moved aside to
// <index>.corrupt.<unix-timestamp>, the catalog is rebuilt from the
// tracked files via rebuild, and the rebuilt index is saved; in that
// case Load returns a usable index together with a *CorruptIndexError
// describing what happened, which the caller should log but need not
// treat as fatal.
func (ix *Index) Load(rebuild RebuildFunc) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	data, err := os.ReadFile(ix.path)
	if os.IsNotExist(err) {
		debug.LogIndex("no index at %s, starting empty\n", ix.path)
		return nil
	}
	if err != nil {
		return err
	}

	var doc document
	if uerr := json.Unmarshal(data, &doc); uerr != nil {
		return ix.recoverLocked(data, uerr, rebuild)
	}
	if doc.Files == nil {
		doc.Files = map[string]*types.TrackedFile{}
	}
	if doc.SchemaVersion > SchemaVersion {
		return fmt.Errorf("index at %s has schema version %d, newer than supported %d; refusing to load",
			ix.path, doc.SchemaVersion, SchemaVersion)
	}
	if doc.SchemaVersion < SchemaVersion {
		migrate(&doc)
		ix.dirty = true
	}

	ix.doc = doc
	ix.recomputeTotalsLocked()
	debug.LogIndex("loaded %d records from %s\n", len(doc.Files), ix.path)
	return nil
}

// recoverLocked handles a corrupt index file: back it up, rebuild the
// catalog from disk, persist the rebuilt state, and report what
// happened via CorruptIndexError.
func (ix *Index) recoverLocked(raw []byte, cause error, rebuild RebuildFunc) error {
	backup := fmt.Sprintf("%s.corrupt.%d", ix.path, time.Now().Unix())
	if werr := os.WriteFile(backup, raw, ix.fileMode); werr != nil {
		debug.LogIndex("failed to back up corrupt index: %v\n", werr)
		backup = ""
	}

	files := map[string]*types.TrackedFile{}
	if rebuild != nil {
		rebuilt, rerr := rebuild()
		if rerr != nil {
			return fmt.Errorf("index corrupt and rebuild failed: %w", rerr)
		}
		files = rebuilt
	}

	ix.doc = document{
		SchemaVersion: SchemaVersion,
		UpdatedAt:     time.Now(),
		Files:         files,
	}
	ix.recomputeTotalsLocked()
	if serr := ix.saveLocked(); serr != nil {
		return fmt.Errorf("index corrupt and rebuilt state could not be saved: %w", serr)
	}

	debug.LogIndex("recovered corrupt index: %d records rebuilt, backup at %s\n", len(files), backup)
	return bankerrors.NewCorruptIndex(ix.path, backup, cause)
}

// migrate fills fields added after schema version 1. Fast hashes and
// section data are recomputed lazily on the next write of each file;
// categories are inferred from the file name.
func migrate(doc *document) {
	for name, rec := range doc.Files {
		cp := rec.Clone()
		if cp.Name == "" {
			cp.Name = name
		}
		if cp.Category == 0 {
			cp.Category = InferCategory(name)
		}
		doc.Files[name] = cp
	}
	doc.SchemaVersion = SchemaVersion
}

// InferCategory maps well-known memory-bank file names to their
// priority category. Unknown names are custom.
func InferCategory(name string) types.Category {
	switch name {
	case "projectbrief.md", "productContext.md", "systemPatterns.md", "techContext.md":
		return types.CategoryCore
	case "activeContext.md":
		return types.CategoryContext
	case "progress.md", "tasks.md":
		return types.CategoryProgress
	default:
		return types.CategoryCustom
	}
}

// Get returns a clone of the record for name, or NotFound.
func (ix *Index) Get(name string) (*types.TrackedFile, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rec, ok := ix.doc.Files[name]
	if !ok {
		return nil, bankerrors.NewNotFound("index record", name)
	}
	return rec.Clone(), nil
}

// Has reports whether name is in the catalog.
func (ix *Index) Has(name string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.doc.Files[name]
	return ok
}

// List returns clones of all records, sorted by name.
func (ix *Index) List() []*types.TrackedFile {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]*types.TrackedFile, 0, len(ix.doc.Files))
	for _, rec := range ix.doc.Files {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted set of tracked file names.
func (ix *Index) Names() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]string, 0, len(ix.doc.Files))
	for name := range ix.doc.Files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Upsert installs a record, replacing any previous one wholesale, and
// refreshes the totals. The stored record is a clone of rec.
func (ix *Index) Upsert(rec *types.TrackedFile) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.doc.Files[rec.Name] = rec.Clone()
	ix.recomputeTotalsLocked()
	ix.dirty = true
}

// Remove drops a record and refreshes the totals. Removing an absent
// name is a no-op.
func (ix *Index) Remove(name string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.doc.Files[name]; !ok {
		return
	}
	delete(ix.doc.Files, name)
	ix.recomputeTotalsLocked()
	ix.dirty = true
}

// RecordAccess bumps the read or write counter for name. Best effort:
// an unknown name is silently ignored so access accounting can never
// fail an operation that otherwise succeeded.
func (ix *Index) RecordAccess(name string, kind types.AccessKind) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec, ok := ix.doc.Files[name]
	if !ok {
		return
	}
	cp := rec.Clone()
	switch kind {
	case types.AccessRead:
		cp.ReadCount++
	case types.AccessWrite:
		cp.WriteCount++
	}
	ix.doc.Files[name] = cp
	ix.dirty = true
}

// Totals returns the current aggregates.
func (ix *Index) Totals() Totals {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.doc.Totals
}

// Dirty reports whether there are unsaved changes.
func (ix *Index) Dirty() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dirty
}

// Save persists the index atomically: marshal, write to a temp file in
// the same directory, fsync, rename over the old index. A crash leaves
// either the previous index or the new one, never a truncated mixture.
func (ix *Index) Save() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.saveLocked()
}

func (ix *Index) saveLocked() error {
	ix.doc.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(&ix.doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(ix.path)
	tmp, err := os.CreateTemp(dir, ".membank-index-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, ix.fileMode); err != nil {
		return err
	}
	if err := os.Rename(tmpName, ix.path); err != nil {
		return err
	}

	ix.dirty = false
	debug.LogIndex("saved %d records to %s\n", len(ix.doc.Files), ix.path)
	return nil
}

func (ix *Index) recomputeTotalsLocked() {
	t := Totals{}
	for _, rec := range ix.doc.Files {
		t.Files++
		t.Bytes += rec.SizeBytes
		t.Tokens += rec.TokenCount
	}
	ix.doc.Totals = t
}
