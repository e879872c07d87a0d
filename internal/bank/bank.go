// Package bank is the coordinator. It owns one memory bank rooted at a
// directory and wires the storage, index, history, graph, duplicate,
// cache, and watcher components together. Every bank is an explicit
// object: open one per root, pass it around, close it when done. There
// are no package-level singletons.
package bank

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/standardbeagle/membank/internal/cache"
	"github.com/standardbeagle/membank/internal/config"
	"github.com/standardbeagle/membank/internal/debug"
	"github.com/standardbeagle/membank/internal/dedup"
	bankerrors "github.com/standardbeagle/membank/internal/errors"
	"github.com/standardbeagle/membank/internal/fileaccess"
	"github.com/standardbeagle/membank/internal/graph"
	"github.com/standardbeagle/membank/internal/hashing"
	"github.com/standardbeagle/membank/internal/history"
	"github.com/standardbeagle/membank/internal/index"
	"github.com/standardbeagle/membank/internal/sections"
	"github.com/standardbeagle/membank/internal/tokens"
	"github.com/standardbeagle/membank/internal/types"
	"github.com/standardbeagle/membank/internal/watcher"
)

// Bank coordinates all components for one root directory.
type Bank struct {
	cfg      *config.Config
	layer    *fileaccess.Layer
	index    *index.Index
	versions *history.Store
	graph    *graph.Graph
	detector *dedup.Detector
	cache    *cache.Cache
	counter  *tokens.Counter
	parser   types.SectionParser
	watch    *watcher.Watcher

	closeOnce sync.Once
	loadErr   error // non-fatal index recovery, surfaced via LoadWarning
}

// Options tweak construction without widening Open's signature.
type Options struct {
	// CountTokens overrides the heuristic estimator with a precise
	// counter. Failures fall back to the estimate.
	CountTokens tokens.CountFunc
	// Parser overrides the markdown heading parser.
	Parser types.SectionParser
	// DisableWatcher skips out-of-band change detection even when the
	// config enables it.
	DisableWatcher bool
	// ConfigFile names an explicit KDL config file to load instead of
	// .membank.kdl under root.
	ConfigFile string
}

// Open builds a bank for root: loads configuration, constructs every
// component, adopts untracked files into the index, seeds the
// dependency graph, and starts the watcher. A corrupt index is
// recovered (backed up and rebuilt), not fatal; check LoadWarning.
func Open(root string, opts Options) (*Bank, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigFile != "" {
		cfg, err = config.LoadFile(root, opts.ConfigFile)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return nil, err
	}
	return openWithConfig(cfg, opts)
}

func openWithConfig(cfg *config.Config, opts Options) (*Bank, error) {
	layer, err := fileaccess.NewLayer(cfg)
	if err != nil {
		return nil, err
	}

	b := &Bank{
		cfg:      cfg,
		layer:    layer,
		index:    index.New(layer.Root(), fileMode(cfg)),
		versions: history.NewStore(layer.Root(), cfg.Versions.MaxPerFile, fileMode(cfg)),
		detector: dedup.NewDetector(cfg.Duplicates),
		cache:    cache.New(cfg.Cache),
		counter:  tokens.NewCounter(opts.CountTokens, cfg.Tokens.CacheSize),
	}
	b.parser = opts.Parser
	if b.parser == nil {
		b.parser = sections.New()
	}

	if err := b.index.Load(b.rebuildRecords); err != nil {
		if !bankerrors.IsRecoverable(err) {
			b.cache.Close()
			return nil, err
		}
		b.loadErr = err
		debug.LogBank("index recovered: %v\n", err)
	}

	if err := b.adoptUntracked(); err != nil {
		b.cache.Close()
		return nil, err
	}

	b.graph = graph.New(graph.StaticEdgesFor(b.index.List()))
	b.seedLinks()

	if cfg.Watcher.Enabled && !opts.DisableWatcher {
		b.watch = watcher.New(layer.Root(), cfg.Watcher, cfg.Storage.TrackedExtensions, b.onFileEvent)
		if err := b.watch.Start(); err != nil {
			b.cache.Close()
			return nil, fmt.Errorf("starting watcher: %w", err)
		}
	}

	return b, nil
}

func fileMode(cfg *config.Config) os.FileMode {
	return os.FileMode(cfg.Storage.FileMode)
}

// LoadWarning reports the non-fatal index recovery that happened at
// Open, if any.
func (b *Bank) LoadWarning() error { return b.loadErr }

// Root returns the bank's absolute root directory.
func (b *Bank) Root() string { return b.layer.Root() }

// Config returns the effective configuration.
func (b *Bank) Config() *config.Config { return b.cfg }

// rebuildRecords recomputes every tracked-file record from disk. Used
// both for index corruption recovery and first-open migration.
func (b *Bank) rebuildRecords() (map[string]*types.TrackedFile, error) {
	names, err := b.layer.List()
	if err != nil {
		return nil, err
	}

	records := make(map[string]*types.TrackedFile, len(names))
	for _, name := range names {
		rec, err := b.buildRecord(context.Background(), name)
		if err != nil {
			debug.LogBank("rebuild %s: %v\n", name, err)
			continue
		}
		records[name] = rec
	}
	return records, nil
}

// buildRecord derives a full metadata record from current disk state.
func (b *Bank) buildRecord(ctx context.Context, name string) (*types.TrackedFile, error) {
	content, hash, err := b.layer.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	text := string(content)
	count := b.counter.Count(text, hash)

	info, err := b.layer.Stat(name)
	if err != nil {
		return nil, err
	}

	return &types.TrackedFile{
		Name:         name,
		Hash:         hash,
		FastHash:     hashing.Fast(content),
		SizeBytes:    int64(len(content)),
		TokenCount:   count.Tokens,
		Sections:     b.parser.Parse(text),
		VersionCount: latestOrZero(b.versions, name),
		LastModified: info.ModTime(),
		Category:     index.InferCategory(name),
	}, nil
}

func latestOrZero(store *history.Store, name string) int {
	v, err := store.Latest(name)
	if err != nil {
		return 0
	}
	return v
}

// adoptUntracked pulls files that exist on disk but not in the index
// into the catalog. This is how a pre-existing documentation directory
// becomes a bank without an explicit import step.
func (b *Bank) adoptUntracked() error {
	names, err := b.layer.List()
	if err != nil {
		return err
	}

	adopted := 0
	for _, name := range names {
		if b.index.Has(name) {
			continue
		}
		rec, err := b.buildRecord(context.Background(), name)
		if err != nil {
			debug.LogBank("adopt %s: %v\n", name, err)
			continue
		}
		b.index.Upsert(rec)
		adopted++
	}
	if adopted > 0 {
		debug.LogBank("adopted %d untracked files\n", adopted)
		return b.index.Save()
	}
	return nil
}

// seedLinks extracts links from every tracked file so the dynamic
// layer of the graph reflects current content from the first query.
func (b *Bank) seedLinks() {
	for _, rec := range b.index.List() {
		content, _, err := b.layer.Read(context.Background(), rec.Name)
		if err != nil {
			continue
		}
		b.graph.ReplaceDynamicEdges(rec.Name, ExtractLinks(rec.Name, string(content)))
	}
}

// Close stops the watcher, flushes the index if dirty, and persists
// analytics. Idempotent.
func (b *Bank) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.watch != nil {
			b.watch.Stop()
		}
		if b.index.Dirty() {
			err = b.index.Save()
		}
		b.cache.SaveAnalytics(filepath.Join(b.layer.Root(), types.AnalyticsFileName))
		b.cache.Close()
	})
	return err
}

// onFileEvent reacts to out-of-band edits: the cached derivations for
// the file are dropped, and the index record is refreshed (or removed,
// for deletes) so the catalog converges on reality without waiting for
// the next explicit write.
func (b *Bank) onFileEvent(ev types.FileEvent) {
	debug.LogBank("external %s on %s\n", ev.Type, ev.Path)
	b.cache.InvalidatePrefix("file:" + ev.Path + ":")
	b.cache.Invalidate("scan:duplicates")

	switch ev.Type {
	case types.EventDelete:
		b.index.Remove(ev.Path)
		b.graph.RemoveNode(ev.Path)
	default:
		rec, err := b.buildRecord(context.Background(), ev.Path)
		if err != nil {
			debug.LogBank("refresh %s: %v\n", ev.Path, err)
			return
		}
		if prev, gerr := b.index.Get(ev.Path); gerr == nil {
			rec.ReadCount = prev.ReadCount
			rec.WriteCount = prev.WriteCount
		}
		b.index.Upsert(rec)
		if content, _, rerr := b.layer.Read(context.Background(), ev.Path); rerr == nil {
			b.graph.ReplaceDynamicEdges(ev.Path, ExtractLinks(ev.Path, string(content)))
		}
	}
	if err := b.index.Save(); err != nil {
		debug.LogBank("index save after event: %v\n", err)
	}
}

// Stats summarizes the bank: catalog totals plus cache counters.
type Stats struct {
	Files  int
	Bytes  int64
	Tokens int
	Cache  cache.Stats
}

// Stats returns a point-in-time summary.
func (b *Bank) Stats() Stats {
	totals := b.index.Totals()
	return Stats{
		Files:  totals.Files,
		Bytes:  totals.Bytes,
		Tokens: totals.Tokens,
		Cache:  b.cache.Stats(),
	}
}
