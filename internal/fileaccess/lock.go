package fileaccess

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/standardbeagle/membank/internal/debug"
	bankerrors "github.com/standardbeagle/membank/internal/errors"
)

// lockHolder is the metadata written into the sentinel lock file so a
// competing writer (or a human) can see who holds it and since when.
type lockHolder struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// fileLock is one held sentinel lock.
type fileLock struct {
	path string
}

// acquireLock takes the exclusive per-file sentinel lock by creating
// <path>.lock with O_CREATE|O_EXCL - the most atomic create-if-absent
// the filesystem offers, which shrinks the check-then-act window to a
// single syscall. On contention it polls at a fixed interval until the
// configured timeout, breaking locks that are provably stale (holder
// process dead, or older than StaleAfter).
func (l *Layer) acquireLock(ctx context.Context, name, lockPath string) (*fileLock, error) {
	deadline := time.Now().Add(l.lockCfg.Timeout)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			holder := lockHolder{PID: os.Getpid(), AcquiredAt: time.Now()}
			if data, merr := json.Marshal(holder); merr == nil {
				_, _ = f.Write(data)
			}
			f.Close()
			debug.LogLock("acquired %s\n", lockPath)
			return &fileLock{path: lockPath}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		if l.breakIfStale(lockPath) {
			continue // retry immediately after clearing a stale lock
		}

		if time.Now().After(deadline) {
			holderPID := 0
			if h := readHolder(lockPath); h != nil {
				holderPID = h.PID
			}
			return nil, bankerrors.NewLockTimeout(name, lockPath, l.lockCfg.Timeout, holderPID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.lockCfg.PollInterval):
		}
	}
}

// release removes the sentinel. Called on every exit path of a write.
func (lk *fileLock) release() {
	if err := os.Remove(lk.path); err != nil && !os.IsNotExist(err) {
		debug.LogLock("failed to remove %s: %v\n", lk.path, err)
	} else {
		debug.LogLock("released %s\n", lk.path)
	}
}

// breakIfStale removes the lock file when its holder is demonstrably
// gone: the recorded process is dead, or the lock has outlived the
// stale window. Returns true if the lock was removed.
func (l *Layer) breakIfStale(lockPath string) bool {
	h := readHolder(lockPath)
	if h == nil {
		// Unreadable or empty lock file: only age can prove staleness.
		info, err := os.Stat(lockPath)
		if err != nil {
			return false
		}
		if time.Since(info.ModTime()) > l.lockCfg.StaleAfter {
			debug.LogLock("breaking unreadable stale lock %s (age %v)\n", lockPath, time.Since(info.ModTime()))
			return os.Remove(lockPath) == nil
		}
		return false
	}

	expired := time.Since(h.AcquiredAt) > l.lockCfg.StaleAfter
	if expired && !processAlive(h.PID) {
		debug.LogLock("breaking stale lock %s (pid %d dead, age %v)\n", lockPath, h.PID, time.Since(h.AcquiredAt))
		return os.Remove(lockPath) == nil
	}
	return false
}

func readHolder(lockPath string) *lockHolder {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil
	}
	var h lockHolder
	if json.Unmarshal(data, &h) != nil {
		return nil
	}
	return &h
}

// processAlive reports whether a PID refers to a live process. On
// platforms without signal 0 semantics it answers true, leaving the
// age check as the only staleness signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
