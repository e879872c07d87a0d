// Package fileaccess is the sandboxed I/O layer of the bank. All reads
// and writes of tracked files go through a Layer rooted at one
// directory: names are validated against the root, writes are
// serialized by a per-file sentinel lock and committed by atomic
// rename, and conflicting concurrent edits are detected by content
// hash before anything is overwritten.
package fileaccess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/membank/internal/config"
	"github.com/standardbeagle/membank/internal/debug"
	bankerrors "github.com/standardbeagle/membank/internal/errors"
	"github.com/standardbeagle/membank/internal/hashing"
	"github.com/standardbeagle/membank/internal/types"
)

// Layer provides sandboxed file access under a single root.
type Layer struct {
	root       string
	storageCfg config.Storage
	lockCfg    config.Lock
}

// WriteResult reports what a successful write committed.
type WriteResult struct {
	Hash      string
	FastHash  uint64
	SizeBytes int64
}

// NewLayer creates a Layer rooted at cfg.Root. The root is created if
// missing so a fresh bank directory works out of the box.
func NewLayer(cfg *config.Config) (*Layer, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &Layer{
		root:       root,
		storageCfg: cfg.Storage,
		lockCfg:    cfg.Lock,
	}, nil
}

// Root returns the absolute sandbox root.
func (l *Layer) Root() string { return l.root }

// Read returns the current content and strong hash of a tracked file.
// Reads take no lock: writes commit by rename, so any read observes a
// fully committed state, pre- or post-write, never a mixture.
func (l *Layer) Read(ctx context.Context, name string) ([]byte, string, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, "", err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", bankerrors.NewNotFound("file", name)
		}
		return nil, "", err
	}

	return content, hashing.Strong(content), nil
}

// Write commits new content for a tracked file. If expectedHash is
// non-empty it must match the hash of the file's current content,
// checked under the lock; a mismatch fails with ConflictError and the
// file is left untouched. A missing file with a non-empty expectedHash
// is also a conflict: the caller believed the file existed.
//
// The sentinel lock is held for the shortest possible window and
// released on every exit path.
func (l *Layer) Write(ctx context.Context, name string, content []byte, expectedHash string) (WriteResult, error) {
	path, err := l.resolve(name)
	if err != nil {
		return WriteResult{}, err
	}
	if max := l.storageCfg.MaxFileSize; max > 0 && int64(len(content)) > max {
		return WriteResult{}, fmt.Errorf("%s: content is %d bytes, limit is %d", name, len(content), max)
	}

	lock, err := l.acquireLock(ctx, name, path+".lock")
	if err != nil {
		return WriteResult{}, err
	}
	defer lock.release()

	if expectedHash != "" {
		current, rerr := os.ReadFile(path)
		if rerr != nil {
			if !os.IsNotExist(rerr) {
				return WriteResult{}, rerr
			}
			return WriteResult{}, bankerrors.NewConflict(name, expectedHash, "")
		}
		actual := hashing.Strong(current)
		if actual != expectedHash {
			debug.LogBank("write conflict on %s: expected %.12s actual %.12s\n", name, expectedHash, actual)
			return WriteResult{}, bankerrors.NewConflict(name, expectedHash, actual)
		}
	}

	if err := atomicWrite(path, content, os.FileMode(l.storageCfg.FileMode)); err != nil {
		return WriteResult{}, err
	}

	return WriteResult{
		Hash:      hashing.Strong(content),
		FastHash:  hashing.Fast(content),
		SizeBytes: int64(len(content)),
	}, nil
}

// Delete removes a tracked file. Missing files fail with NotFound.
func (l *Layer) Delete(ctx context.Context, name string) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}

	lock, err := l.acquireLock(ctx, name, path+".lock")
	if err != nil {
		return err
	}
	defer lock.release()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return bankerrors.NewNotFound("file", name)
		}
		return err
	}
	return nil
}

// Exists reports whether a tracked file is present on disk.
func (l *Layer) Exists(name string) bool {
	path, err := l.resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Stat returns size and modification time for a tracked file.
func (l *Layer) Stat(name string) (os.FileInfo, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, bankerrors.NewNotFound("file", name)
		}
		return nil, err
	}
	return info, nil
}

// List returns the names of all files directly under the root that
// match the tracked-extension patterns, excluding the bank's own
// bookkeeping files. Sorted for deterministic output.
func (l *Layer) List() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if l.isBookkeeping(name) || !l.IsTracked(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// IsTracked reports whether a file name matches the tracked-extension
// patterns.
func (l *Layer) IsTracked(name string) bool {
	base := filepath.Base(name)
	for _, pattern := range l.storageCfg.TrackedExtensions {
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// isBookkeeping filters the bank's own files out of tracked listings.
func (l *Layer) isBookkeeping(name string) bool {
	return name == types.IndexFileName ||
		name == types.AnalyticsFileName ||
		name == config.ConfigFileName ||
		strings.HasSuffix(name, ".lock") ||
		strings.HasPrefix(name, ".membank-") // in-flight temp files
}

// Conflict marker prefixes written by git and friends.
const (
	markerBegin = "<<<<<<< "
	markerEnd   = ">>>>>>> "
)

// DetectConflictMarkers reports whether content carries version
// control conflict markers. Content with markers is not clean and
// should not be committed as a normal write.
func DetectConflictMarkers(content []byte) bool {
	hasBegin := false
	hasEnd := false
	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(line, markerBegin) {
			hasBegin = true
		} else if strings.HasPrefix(line, markerEnd) {
			hasEnd = true
		}
		if hasBegin && hasEnd {
			return true
		}
	}
	return false
}
