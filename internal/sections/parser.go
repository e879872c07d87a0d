// Package sections derives heading-delimited Section lists from
// markdown content. It is the default implementation of the
// content->sections collaborator the bank consumes; anything that can
// produce []types.Section can replace it.
package sections

import (
	"strings"

	"github.com/standardbeagle/membank/internal/hashing"
	"github.com/standardbeagle/membank/internal/types"
)

// Parser scans ATX headings (# through ######). Headings inside fenced
// code blocks are ignored. Content before the first heading becomes a
// level-0 preamble section only if a heading follows it; a file with
// no headings yields a single section spanning the whole file.
type Parser struct{}

// New returns the default markdown section parser.
func New() *Parser {
	return &Parser{}
}

var _ types.SectionParser = (*Parser)(nil)

// Parse splits content into sections. Line numbers are 1-based.
func (p *Parser) Parse(content string) []types.Section {
	if content == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	var out []types.Section
	inFence := false

	flush := func(start, end int) {
		// start/end are 0-based line indexes, end exclusive.
		if len(out) == 0 {
			return
		}
		body := strings.Join(lines[start:end], "\n")
		out[len(out)-1].Content = body
		out[len(out)-1].Hash = hashing.StrongString(body)
	}

	sectionStart := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		level, heading := headingOf(line)
		if level == 0 {
			continue
		}

		if len(out) == 0 && i > 0 && hasText(lines[:i]) {
			// Preamble before the first heading.
			out = append(out, types.Section{Heading: "", Level: 0, StartLine: 1})
			flush(0, i)
		} else {
			flush(sectionStart, i)
		}

		out = append(out, types.Section{
			Heading:   heading,
			Level:     level,
			StartLine: i + 1,
		})
		sectionStart = i
	}

	if len(out) == 0 {
		// No headings at all: one section for the whole file.
		out = append(out, types.Section{Heading: "", Level: 0, StartLine: 1})
		sectionStart = 0
	}
	flush(sectionStart, len(lines))

	return out
}

// headingOf returns the ATX heading level (1-6) and text, or 0 for a
// non-heading line.
func headingOf(line string) (int, string) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return 0, "" // four or more leading spaces is indented code
	}

	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, ""
	}
	rest := trimmed[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, "" // "#hashtag" is not a heading
	}
	return level, strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
}

func hasText(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}
