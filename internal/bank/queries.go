package bank

import (
	"context"
	"fmt"
	"sort"

	"github.com/standardbeagle/membank/internal/cache"
	"github.com/standardbeagle/membank/internal/dedup"
	"github.com/standardbeagle/membank/internal/graph"
	"github.com/standardbeagle/membank/internal/hashing"
	"github.com/standardbeagle/membank/internal/types"
)

// ScanDuplicates runs duplicate detection over every section of every
// tracked file. The report is cached until the next write or external
// change invalidates it.
func (b *Bank) ScanDuplicates(ctx context.Context) (*dedup.Report, error) {
	if cached, ok := b.cache.Get("scan:duplicates"); ok {
		if report, ok := cached.(*dedup.Report); ok {
			return report, nil
		}
	}

	var refs []dedup.SectionRef
	for _, rec := range b.index.List() {
		content, _, err := b.layer.Read(ctx, rec.Name)
		if err != nil {
			continue // a file deleted mid-scan is not this scan's problem
		}
		for _, s := range b.parser.Parse(string(content)) {
			refs = append(refs, dedup.SectionRef{
				File:    rec.Name,
				Heading: s.Heading,
				Content: s.Content,
			})
		}
	}

	report := b.detector.ScanAll(refs)
	b.cache.Set("scan:duplicates", report)
	return report, nil
}

// ConsistencyIssue is one divergence between the catalog and reality.
type ConsistencyIssue struct {
	Name   string
	Detail string
}

// ConsistencyCheck compares the index against the files on disk:
// records whose content hash no longer matches, records whose file is
// gone, and files present on disk but absent from the catalog. The
// fast hash rules out most files with one cheap comparison before the
// strong hash confirms a real mismatch.
func (b *Bank) ConsistencyCheck(ctx context.Context) ([]ConsistencyIssue, error) {
	var issues []ConsistencyIssue

	tracked := map[string]bool{}
	for _, rec := range b.index.List() {
		tracked[rec.Name] = true

		content, _, err := b.layer.Read(ctx, rec.Name)
		if err != nil {
			issues = append(issues, ConsistencyIssue{
				Name:   rec.Name,
				Detail: fmt.Sprintf("indexed but unreadable: %v", err),
			})
			continue
		}
		if hashing.Fast(content) == rec.FastHash {
			continue
		}
		if actual := hashing.Strong(content); actual != rec.Hash {
			issues = append(issues, ConsistencyIssue{
				Name: rec.Name,
				Detail: fmt.Sprintf("content hash %.12s does not match recorded %.12s (external edit?)",
					actual, rec.Hash),
			})
		}
	}

	onDisk, err := b.layer.List()
	if err != nil {
		return issues, err
	}
	for _, name := range onDisk {
		if !tracked[name] {
			issues = append(issues, ConsistencyIssue{Name: name, Detail: "on disk but not in the index"})
		}
	}

	sort.Slice(issues, func(i, j int) bool { return issues[i].Name < issues[j].Name })
	return issues, nil
}

// LoadingOrder returns the dependency-respecting order for loading
// tracked files, with any cycles reported as data.
func (b *Bank) LoadingOrder() graph.Order {
	return b.graph.LoadingOrder()
}

// DetectCycles reports every dependency cycle.
func (b *Bank) DetectCycles() [][]string {
	return b.graph.DetectCycles()
}

// MinimalContext returns name plus its transitive dependencies.
func (b *Bank) MinimalContext(name string) []string {
	return b.graph.MinimalContext(name)
}

// Dependencies and Dependents expose the direct graph neighborhoods.
func (b *Bank) Dependencies(name string) []string { return b.graph.Dependencies(name) }
func (b *Bank) Dependents(name string) []string   { return b.graph.Dependents(name) }

// ExportMermaid renders the dependency graph as a mermaid flowchart.
func (b *Bank) ExportMermaid() string {
	return b.graph.ExportMermaid()
}

// History lists the retained versions of a file, oldest first.
func (b *Bank) History(name string) ([]*types.VersionSnapshot, error) {
	return b.versions.List(name)
}

// GetVersion fetches one stored version's content.
func (b *Bank) GetVersion(name string, version int) ([]byte, *types.VersionSnapshot, error) {
	return b.versions.Get(name, version)
}

// DiffVersions renders the change between two stored versions.
func (b *Bank) DiffVersions(name string, from, to int) (string, error) {
	return b.versions.Diff(name, from, to)
}

// HistoryDiskUsage reports bytes held by snapshots, bank-wide when
// name is empty.
func (b *Bank) HistoryDiskUsage(name string) (int64, error) {
	return b.versions.DiskUsage(name)
}

// CleanupHistory removes snapshot sets for files no longer tracked.
func (b *Bank) CleanupHistory() (int, error) {
	tracked := map[string]bool{}
	for _, name := range b.index.Names() {
		tracked[name] = true
	}
	return b.versions.CleanupOrphaned(tracked)
}

// WarmCache runs the standard warming strategies: mandatory keys
// first, then hot paths, then the files most depended upon, then the
// recently used. Each strategy is independent and best-effort.
func (b *Bank) WarmCache(ctx context.Context) []cache.WarmupReport {
	loader := func(key string) (interface{}, error) {
		content, _, err := b.layer.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		return content, nil
	}

	strategies := []cache.Strategy{
		b.cache.Mandatory(),
		b.cache.HotPath(),
		b.cache.Dependency(b.mostDependedUpon),
		b.cache.Recent(),
	}
	return b.cache.RunWarmup(strategies, loader)
}

// mostDependedUpon ranks tracked files by dependent count, descending.
func (b *Bank) mostDependedUpon() []string {
	type ranked struct {
		name  string
		count int
	}
	var all []ranked
	for _, name := range b.graph.Nodes() {
		all = append(all, ranked{name, len(b.graph.Dependents(name))})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].name < all[j].name
	})

	n := b.cfg.Cache.HotKeyCount
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]string, 0, n)
	for _, r := range all[:n] {
		out = append(out, r.name)
	}
	return out
}

// PrefetchRelated warms files co-accessed with name.
func (b *Bank) PrefetchRelated(ctx context.Context, name string) int {
	return b.cache.PrefetchRelated(name, func(key string) (interface{}, error) {
		content, _, err := b.layer.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		return content, nil
	})
}
