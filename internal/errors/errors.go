package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel targets for errors.Is checks. Every typed error below wraps
// exactly one of these, so callers can branch on category without
// caring about the concrete struct.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("file conflict")
	ErrLockTimeout  = errors.New("lock timeout")
	ErrPathEscape   = errors.New("path escapes bank root")
	ErrCorruptIndex = errors.New("index corrupted")
)

// NotFoundError reports a missing file, version, or cache key.
// Always recoverable: create the target or ask for something else.
type NotFoundError struct {
	Kind string // "file", "version", "key"
	Name string
}

func NewNotFound(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a write whose expected hash no longer matches
// the recorded hash: someone else committed in between. Recoverable by
// re-reading and retrying; never auto-resolved.
type ConflictError struct {
	Name         string
	ExpectedHash string
	ActualHash   string
	Timestamp    time.Time
}

func NewConflict(name, expected, actual string) *ConflictError {
	return &ConflictError{
		Name:         name,
		ExpectedHash: expected,
		ActualHash:   actual,
		Timestamp:    time.Now(),
	}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("write conflict on %q: expected hash %.12s, recorded hash is %.12s; re-read the file and retry with the current hash",
		e.Name, e.ExpectedHash, e.ActualHash)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// LockTimeoutError reports failure to acquire the sentinel write lock
// within the configured window. Recoverable via retry with backoff;
// repeated timeouts on the same file suggest a stale lock left by a
// crashed writer.
type LockTimeoutError struct {
	Name      string
	LockPath  string
	Waited    time.Duration
	HolderPID int // 0 when the lock file could not be read
}

func NewLockTimeout(name, lockPath string, waited time.Duration, holderPID int) *LockTimeoutError {
	return &LockTimeoutError{Name: name, LockPath: lockPath, Waited: waited, HolderPID: holderPID}
}

func (e *LockTimeoutError) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("could not lock %q after %v: held by pid %d (lock file %s); retry, or remove the lock file if that process is dead",
			e.Name, e.Waited, e.HolderPID, e.LockPath)
	}
	return fmt.Sprintf("could not lock %q after %v (lock file %s); retry, or remove the lock file if it is stale",
		e.Name, e.Waited, e.LockPath)
}

func (e *LockTimeoutError) Unwrap() error { return ErrLockTimeout }

// PathEscapeError reports a logical name that resolved outside the
// bank root. Fatal for the request: there is no safe fallback target.
type PathEscapeError struct {
	Name     string
	Resolved string
	Root     string
}

func NewPathEscape(name, resolved, root string) *PathEscapeError {
	return &PathEscapeError{Name: name, Resolved: resolved, Root: root}
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("name %q resolves to %s, outside bank root %s", e.Name, e.Resolved, e.Root)
}

func (e *PathEscapeError) Unwrap() error { return ErrPathEscape }

// CorruptIndexError reports an index file that failed to parse. The
// index layer recovers by rebuilding from disk; this error carries
// where the corrupted original was preserved so nothing is discarded.
type CorruptIndexError struct {
	Path       string
	BackupPath string
	Underlying error
}

func NewCorruptIndex(path, backupPath string, cause error) *CorruptIndexError {
	return &CorruptIndexError{Path: path, BackupPath: backupPath, Underlying: cause}
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("index %s failed to parse (%v); original preserved at %s, index rebuilt from tracked files",
		e.Path, e.Underlying, e.BackupPath)
}

func (e *CorruptIndexError) Unwrap() error { return ErrCorruptIndex }

// IsRecoverable reports whether the caller can reasonably retry or
// route around the failure. Path escapes are the only fatal category.
func IsRecoverable(err error) bool {
	return !errors.Is(err, ErrPathEscape)
}
