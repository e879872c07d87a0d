package history

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff renders a line-oriented diff between two stored versions of a
// file. Output marks removed lines with "-" and added lines with "+",
// unchanged lines with two spaces.
func (s *Store) Diff(name string, fromVersion, toVersion int) (string, error) {
	from, _, err := s.Get(name, fromVersion)
	if err != nil {
		return "", err
	}
	to, _, err := s.Get(name, toVersion)
	if err != nil {
		return "", err
	}
	return renderDiff(string(from), string(to)), nil
}

// DiffAgainst renders a diff from a stored version to arbitrary
// content, typically the live file.
func (s *Store) DiffAgainst(name string, fromVersion int, current []byte) (string, error) {
	from, _, err := s.Get(name, fromVersion)
	if err != nil {
		return "", err
	}
	return renderDiff(string(from), string(current)), nil
}

// renderDiff diffs at line granularity. The char-mapping round trip is
// the documented diffmatchpatch recipe for line mode: it keeps the diff
// from splitting inside lines.
func renderDiff(from, to string) string {
	dmp := diffmatchpatch.New()
	fromRunes, toRunes, lines := dmp.DiffLinesToRunes(from, to)
	diffs := dmp.DiffMainRunes(fromRunes, toRunes, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var b strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			fmt.Fprintf(&b, "%s%s\n", prefix, line)
		}
	}
	return b.String()
}
