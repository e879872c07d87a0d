package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/membank/internal/types"
)

func kindsByTarget(edges []types.DependencyEdge) map[string]types.EdgeKind {
	out := map[string]types.EdgeKind{}
	for _, e := range edges {
		out[e.To] = e.Kind
	}
	return out
}

func TestExtractMarkdownLinks(t *testing.T) {
	content := `# Notes

See [the brief](projectbrief.md) and [progress](progress.md#goals).
External: [docs](https://example.com/page.md) and [root](/etc/x.md).
`
	kinds := kindsByTarget(ExtractLinks("notes.md", content))
	assert.Equal(t, types.EdgeReference, kinds["projectbrief.md"])
	assert.Equal(t, types.EdgeReference, kinds["progress.md"])
	assert.Len(t, kinds, 2, "external and absolute targets are skipped")
}

func TestExtractWikiLinks(t *testing.T) {
	content := `Referenced as [[techContext]] and embedded via ![[systemPatterns.md]].
Aliased: [[progress|what's done]].`

	kinds := kindsByTarget(ExtractLinks("notes.md", content))
	assert.Equal(t, types.EdgeReference, kinds["techContext.md"])
	assert.Equal(t, types.EdgeTransclusion, kinds["systemPatterns.md"])
	assert.Equal(t, types.EdgeReference, kinds["progress.md"])
}

func TestTransclusionSubsumesReference(t *testing.T) {
	content := `First [[shared.md]], later ![[shared.md]].`
	kinds := kindsByTarget(ExtractLinks("notes.md", content))
	assert.Equal(t, types.EdgeTransclusion, kinds["shared.md"])
}

func TestSelfAndTraversalLinksSkipped(t *testing.T) {
	content := `Self: [me](notes.md). Traversal: [up](../outside.md). Anchor: [here](#section).`
	assert.Empty(t, ExtractLinks("notes.md", content))
}
