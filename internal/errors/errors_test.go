package errors

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSentinelWrapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"not found", NewNotFound("file", "activeContext.md"), ErrNotFound},
		{"conflict", NewConflict("x.md", "aaa", "bbb"), ErrConflict},
		{"lock timeout", NewLockTimeout("x.md", "/tmp/x.md.lock", time.Second, 0), ErrLockTimeout},
		{"path escape", NewPathEscape("../../etc/passwd", "/etc/passwd", "/bank"), ErrPathEscape},
		{"corrupt index", NewCorruptIndex("/bank/idx.json", "/bank/idx.json.corrupt.1", errors.New("bad json")), ErrCorruptIndex},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false, want true", tc.err)
			}
		})
	}
}

func TestConflictMessageNamesBothHashes(t *testing.T) {
	err := NewConflict("progress.md", "deadbeefdeadbeef", "cafebabecafebabe")
	msg := err.Error()
	if !strings.Contains(msg, "deadbeefdead") || !strings.Contains(msg, "cafebabecafe") {
		t.Errorf("conflict message should carry expected and actual hashes, got %q", msg)
	}
	if !strings.Contains(msg, "retry") {
		t.Errorf("conflict message should suggest a next action, got %q", msg)
	}
}

func TestLockTimeoutMessageMentionsHolder(t *testing.T) {
	err := NewLockTimeout("notes.md", "/bank/notes.md.lock", 30*time.Second, 4242)
	if !strings.Contains(err.Error(), "4242") {
		t.Errorf("lock timeout message should name the holder pid, got %q", err.Error())
	}
}

func TestIsRecoverable(t *testing.T) {
	if IsRecoverable(NewPathEscape("x", "/x", "/root")) {
		t.Error("path escape must be non-recoverable")
	}
	if !IsRecoverable(NewNotFound("file", "x")) {
		t.Error("not-found must be recoverable")
	}
	if !IsRecoverable(NewLockTimeout("x", "l", time.Second, 0)) {
		t.Error("lock timeout must be recoverable")
	}
}

func TestAsTypedError(t *testing.T) {
	var conflict *ConflictError
	err := error(NewConflict("a.md", "h1", "h2"))
	if !errors.As(err, &conflict) {
		t.Fatal("errors.As should recover the typed conflict error")
	}
	if conflict.ExpectedHash != "h1" || conflict.ActualHash != "h2" {
		t.Errorf("typed error lost fields: %+v", conflict)
	}
}
