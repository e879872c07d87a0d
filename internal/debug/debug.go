package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/membank/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// debugOutput is the writer for debug output (defaults to nil, meaning no output)
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

// debugMutex protects access to debug output
var debugMutex sync.Mutex

// SetOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitLogFile initializes debug logging to a timestamped file under
// the OS temp directory. Returns the path to the log file.
// Call CloseLogFile when done so the file is flushed and closed.
func InitLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "membank-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseLogFile closes the debug log file if one is open.
func CloseLogFile() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// Enabled returns true if debug mode is on, either via the build flag
// or the MEMBANK_DEBUG environment variable.
func Enabled() bool {
	if EnableDebug == "true" {
		return true
	}
	if v := os.Getenv("MEMBANK_DEBUG"); v == "1" || v == "true" {
		return true
	}
	return false
}

func writer() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Printf prints debug information only when debug mode is enabled and
// output is configured.
func Printf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG] "+format, args...)
}

// Log provides structured debug logging with component names.
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
}

// LogBank logs coordinator-level operations (read/write flows).
func LogBank(format string, args ...interface{}) {
	Log("BANK", format, args...)
}

// LogIndex logs metadata index load/save/rebuild activity.
func LogIndex(format string, args ...interface{}) {
	Log("INDEX", format, args...)
}

// LogLock logs sentinel lock acquisition and release.
func LogLock(format string, args ...interface{}) {
	Log("LOCK", format, args...)
}

// LogCache logs cache hits, invalidations, and warming runs.
func LogCache(format string, args ...interface{}) {
	Log("CACHE", format, args...)
}

// LogWatch logs file watcher events and debounce flushes.
func LogWatch(format string, args ...interface{}) {
	Log("WATCH", format, args...)
}

// LogVersions logs snapshot creation, pruning, and rollback reads.
func LogVersions(format string, args ...interface{}) {
	Log("VERSIONS", format, args...)
}
