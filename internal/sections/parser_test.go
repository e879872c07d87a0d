package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmpty(t *testing.T) {
	p := New()
	assert.Nil(t, p.Parse(""))
}

func TestParseSingleHeading(t *testing.T) {
	p := New()
	secs := p.Parse("# Title\nbody text\n")

	require.Len(t, secs, 1)
	assert.Equal(t, "Title", secs[0].Heading)
	assert.Equal(t, 1, secs[0].Level)
	assert.Equal(t, 1, secs[0].StartLine)
	assert.Contains(t, secs[0].Content, "body text")
	assert.NotEmpty(t, secs[0].Hash)
}

func TestParseMultipleLevels(t *testing.T) {
	p := New()
	content := "# One\na\n## Two\nb\n### Three\nc\n"
	secs := p.Parse(content)

	require.Len(t, secs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{secs[0].Level, secs[1].Level, secs[2].Level})
	assert.Equal(t, []int{1, 3, 5}, []int{secs[0].StartLine, secs[1].StartLine, secs[2].StartLine})
	assert.Contains(t, secs[1].Content, "b")
	assert.NotContains(t, secs[1].Content, "c")
}

func TestParsePreambleBeforeFirstHeading(t *testing.T) {
	p := New()
	secs := p.Parse("intro text\nmore intro\n# First\nbody\n")

	require.Len(t, secs, 2)
	assert.Equal(t, 0, secs[0].Level)
	assert.Equal(t, 1, secs[0].StartLine)
	assert.Contains(t, secs[0].Content, "intro text")
	assert.Equal(t, "First", secs[1].Heading)
}

func TestParseNoHeadings(t *testing.T) {
	p := New()
	secs := p.Parse("just\nplain\ntext\n")

	require.Len(t, secs, 1)
	assert.Equal(t, 0, secs[0].Level)
	assert.Contains(t, secs[0].Content, "plain")
}

func TestHeadingsInsideFencesIgnored(t *testing.T) {
	p := New()
	content := "# Real\n```\n# not a heading\n```\n## Also Real\n"
	secs := p.Parse(content)

	require.Len(t, secs, 2)
	assert.Equal(t, "Real", secs[0].Heading)
	assert.Equal(t, "Also Real", secs[1].Heading)
}

func TestHashtagIsNotHeading(t *testing.T) {
	p := New()
	secs := p.Parse("# Title\n#hashtag line\n")

	require.Len(t, secs, 1)
	assert.Contains(t, secs[0].Content, "#hashtag")
}

func TestSevenHashesIsNotHeading(t *testing.T) {
	p := New()
	secs := p.Parse("####### too deep\n")
	require.Len(t, secs, 1)
	assert.Equal(t, 0, secs[0].Level)
}

func TestTrailingHashesTrimmed(t *testing.T) {
	p := New()
	secs := p.Parse("## Closed ##\n")
	require.Len(t, secs, 1)
	assert.Equal(t, "Closed", secs[0].Heading)
}

func TestIdenticalContentIdenticalHash(t *testing.T) {
	p := New()
	a := p.Parse("# H\nsame body\n")
	b := p.Parse("# H\nsame body\n")
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Hash, b[0].Hash)
}
