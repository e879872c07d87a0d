package debug

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLogWritesComponentTag(t *testing.T) {
	os.Setenv("MEMBANK_DEBUG", "1")
	defer os.Unsetenv("MEMBANK_DEBUG")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	LogIndex("rebuilt %d entries\n", 3)

	got := buf.String()
	if !strings.Contains(got, "[DEBUG:INDEX]") {
		t.Errorf("expected component tag in output, got %q", got)
	}
	if !strings.Contains(got, "rebuilt 3 entries") {
		t.Errorf("expected formatted message in output, got %q", got)
	}
}

func TestDisabledProducesNoOutput(t *testing.T) {
	os.Unsetenv("MEMBANK_DEBUG")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	LogBank("should not appear\n")

	if buf.Len() != 0 {
		t.Errorf("expected no output when debug disabled, got %q", buf.String())
	}
}

func TestNilWriterIsSafe(t *testing.T) {
	os.Setenv("MEMBANK_DEBUG", "1")
	defer os.Unsetenv("MEMBANK_DEBUG")

	SetOutput(nil)
	// Must not panic.
	Printf("into the void %d\n", 42)
	LogCache("into the void\n")
}
