// Package history is the snapshot store. Every successful write of a
// tracked file deposits the previous content here as a numbered
// version; the store prunes itself to a configured depth and can hand
// back, diff, or clean up old versions on demand.
package history

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/standardbeagle/membank/internal/debug"
	bankerrors "github.com/standardbeagle/membank/internal/errors"
	"github.com/standardbeagle/membank/internal/types"
)

// Store keeps version snapshots under <root>/history/<name>/.
// Each version is a pair of files: v<N>.md holds the content and
// v<N>.meta.json the sidecar metadata. N is sequential per file and
// never reused, so version numbers stay stable across pruning.
type Store struct {
	dir        string // <root>/history
	maxPerFile int
	fileMode   os.FileMode
}

// NewStore creates a snapshot store under root. maxPerFile bounds how
// many versions are retained per tracked file; older snapshots are
// pruned as new ones arrive.
func NewStore(root string, maxPerFile int, fileMode os.FileMode) *Store {
	return &Store{
		dir:        filepath.Join(root, types.HistoryDirName),
		maxPerFile: maxPerFile,
		fileMode:   fileMode,
	}
}

// fileDir maps a tracked file name to its snapshot directory, refusing
// names that would land outside the history subtree.
func (s *Store) fileDir(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", bankerrors.NewPathEscape(name, "", s.dir)
	}
	dir := filepath.Join(s.dir, filepath.Clean(name))
	rel, err := filepath.Rel(s.dir, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", bankerrors.NewPathEscape(name, dir, s.dir)
	}
	return dir, nil
}

func contentPath(dir string, version int) string {
	return filepath.Join(dir, fmt.Sprintf("v%d.md", version))
}

func metaPath(dir string, version int) string {
	return filepath.Join(dir, fmt.Sprintf("v%d.meta.json", version))
}

// Snapshot stores content as the next version of name and prunes
// anything beyond the retention limit. It returns the assigned version
// number.
func (s *Store) Snapshot(name string, content []byte, meta types.VersionSnapshot) (int, error) {
	dir, err := s.fileDir(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	versions, err := versionNumbers(dir)
	if err != nil {
		return 0, err
	}
	next := 1
	if len(versions) > 0 {
		next = versions[len(versions)-1] + 1
	}

	meta.Name = name
	meta.Version = next
	meta.SizeBytes = int64(len(content))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	if err := os.WriteFile(contentPath(dir, next), content, s.fileMode); err != nil {
		return 0, err
	}
	metaData, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(metaPath(dir, next), metaData, s.fileMode); err != nil {
		return 0, err
	}

	s.prune(dir, append(versions, next))
	debug.LogVersions("snapshot %s v%d (%d bytes)\n", name, next, len(content))
	return next, nil
}

// prune drops the oldest versions until the configured retention
// depth holds. Prune failures are logged and ignored: a stray old
// snapshot wastes disk but breaks nothing.
func (s *Store) prune(dir string, versions []int) {
	if s.maxPerFile <= 0 || len(versions) <= s.maxPerFile {
		return
	}
	sort.Ints(versions)
	for _, v := range versions[:len(versions)-s.maxPerFile] {
		if err := os.Remove(contentPath(dir, v)); err != nil {
			debug.LogVersions("prune v%d content: %v\n", v, err)
		}
		if err := os.Remove(metaPath(dir, v)); err != nil {
			debug.LogVersions("prune v%d meta: %v\n", v, err)
		}
	}
}

// Get returns the content and metadata of one stored version.
func (s *Store) Get(name string, version int) ([]byte, *types.VersionSnapshot, error) {
	dir, err := s.fileDir(name)
	if err != nil {
		return nil, nil, err
	}

	content, err := os.ReadFile(contentPath(dir, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, bankerrors.NewNotFound("version", fmt.Sprintf("%s v%d", name, version))
		}
		return nil, nil, err
	}

	meta := &types.VersionSnapshot{Name: name, Version: version}
	if metaData, merr := os.ReadFile(metaPath(dir, version)); merr == nil {
		// Sidecar metadata is best effort; content alone is enough to
		// serve the version.
		_ = json.Unmarshal(metaData, meta)
	}
	return content, meta, nil
}

// Latest returns the highest stored version number for name, or 0 when
// no snapshots exist.
func (s *Store) Latest(name string) (int, error) {
	dir, err := s.fileDir(name)
	if err != nil {
		return 0, err
	}
	versions, err := versionNumbers(dir)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1], nil
}

// List returns metadata for all stored versions of name, oldest first.
// A file with no snapshots yields an empty list, not an error.
func (s *Store) List(name string) ([]*types.VersionSnapshot, error) {
	dir, err := s.fileDir(name)
	if err != nil {
		return nil, err
	}
	versions, err := versionNumbers(dir)
	if err != nil {
		return nil, err
	}

	out := make([]*types.VersionSnapshot, 0, len(versions))
	for _, v := range versions {
		meta := &types.VersionSnapshot{Name: name, Version: v}
		if data, merr := os.ReadFile(metaPath(dir, v)); merr == nil {
			_ = json.Unmarshal(data, meta)
		}
		if info, serr := os.Stat(contentPath(dir, v)); serr == nil && meta.SizeBytes == 0 {
			meta.SizeBytes = info.Size()
		}
		out = append(out, meta)
	}
	return out, nil
}

// Rollback fetches the content of an old version so the caller can
// commit it as a fresh write. The store never touches the live file:
// rolling back is a normal write through the access layer, which means
// it takes the lock, runs conflict detection, and snapshots the state
// it replaces.
func (s *Store) Rollback(name string, version int) ([]byte, error) {
	content, _, err := s.Get(name, version)
	return content, err
}

// DiskUsage sums the bytes held in snapshots. With a name it covers one
// file's history; with the empty string it covers the whole subtree.
func (s *Store) DiskUsage(name string) (int64, error) {
	root := s.dir
	if name != "" {
		dir, err := s.fileDir(name)
		if err != nil {
			return 0, err
		}
		root = dir
	}

	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return total, nil
}

// CleanupOrphaned removes snapshot directories whose tracked file no
// longer exists. tracked is the authoritative set of live names; the
// return value is the number of directories removed.
func (s *Store) CleanupOrphaned(tracked map[string]bool) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if tracked[name] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
			debug.LogVersions("cleanup %s: %v\n", name, err)
			continue
		}
		debug.LogVersions("removed orphaned history for %s\n", name)
		removed++
	}
	return removed, nil
}

// versionNumbers lists the stored version numbers in a snapshot
// directory, ascending. A missing directory means no versions.
func versionNumbers(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var versions []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".md") {
			continue
		}
		n, perr := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".md"))
		if perr != nil || n < 1 {
			continue
		}
		versions = append(versions, n)
	}
	sort.Ints(versions)
	return versions, nil
}
