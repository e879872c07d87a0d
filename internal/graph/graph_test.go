package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/membank/internal/types"
)

func edge(from, to string, kind types.EdgeKind) types.DependencyEdge {
	return types.DependencyEdge{From: from, To: to, Kind: kind}
}

// The canonical hierarchy: activeContext depends on the core files,
// progress depends on activeContext.
func hierarchyGraph() *Graph {
	files := []*types.TrackedFile{
		{Name: "projectbrief.md", Category: types.CategoryCore},
		{Name: "techContext.md", Category: types.CategoryCore},
		{Name: "activeContext.md", Category: types.CategoryContext},
		{Name: "progress.md", Category: types.CategoryProgress},
	}
	return New(StaticEdgesFor(files))
}

func TestStaticHierarchy(t *testing.T) {
	g := hierarchyGraph()

	assert.Equal(t, []string{"projectbrief.md", "techContext.md"}, g.Dependencies("activeContext.md"))
	assert.Equal(t, []string{"activeContext.md"}, g.Dependencies("progress.md"))
	assert.Equal(t, []string{"activeContext.md"}, g.Dependents("projectbrief.md"))
	assert.Empty(t, g.Dependencies("projectbrief.md"))
}

func TestLoadingOrderRespectsDependencies(t *testing.T) {
	g := hierarchyGraph()

	order := g.LoadingOrder()
	require.Empty(t, order.Cycles)
	require.Len(t, order.Loaded, 4)

	pos := map[string]int{}
	for i, n := range order.Loaded {
		pos[n] = i
	}
	assert.Less(t, pos["projectbrief.md"], pos["activeContext.md"])
	assert.Less(t, pos["techContext.md"], pos["activeContext.md"])
	assert.Less(t, pos["activeContext.md"], pos["progress.md"])
}

func TestDynamicEdges(t *testing.T) {
	g := New(nil)
	g.AddDynamicEdge("a.md", "b.md", types.EdgeReference)
	g.AddDynamicEdge("a.md", "c.md", types.EdgeTransclusion)
	g.AddDynamicEdge("a.md", "a.md", types.EdgeReference) // self-edges ignored

	assert.Equal(t, []string{"b.md", "c.md"}, g.Dependencies("a.md"))

	g.RemoveDynamicEdge("a.md", "b.md")
	assert.Equal(t, []string{"c.md"}, g.Dependencies("a.md"))
}

func TestStaticEdgesSurviveDynamicRemoval(t *testing.T) {
	g := New([]types.DependencyEdge{edge("ctx.md", "core.md", types.EdgeStatic)})

	g.RemoveDynamicEdge("ctx.md", "core.md")
	assert.Equal(t, []string{"core.md"}, g.Dependencies("ctx.md"))

	// A dynamic edge cannot downgrade a static one either.
	g.AddDynamicEdge("ctx.md", "core.md", types.EdgeReference)
	g.RemoveDynamicEdge("ctx.md", "core.md")
	assert.Equal(t, []string{"core.md"}, g.Dependencies("ctx.md"))
}

func TestReplaceDynamicEdges(t *testing.T) {
	g := New([]types.DependencyEdge{edge("doc.md", "core.md", types.EdgeStatic)})
	g.AddDynamicEdge("doc.md", "old.md", types.EdgeReference)

	g.ReplaceDynamicEdges("doc.md", []types.DependencyEdge{
		edge("doc.md", "new1.md", types.EdgeReference),
		edge("doc.md", "new2.md", types.EdgeTransclusion),
	})

	// Static edge kept, old dynamic edge gone, new set installed.
	assert.Equal(t, []string{"core.md", "new1.md", "new2.md"}, g.Dependencies("doc.md"))
}

func TestDetectCycles(t *testing.T) {
	g := New(nil)
	g.AddDynamicEdge("a.md", "b.md", types.EdgeReference)
	g.AddDynamicEdge("b.md", "c.md", types.EdgeReference)
	g.AddDynamicEdge("c.md", "a.md", types.EdgeReference)
	g.AddDynamicEdge("c.md", "d.md", types.EdgeReference) // acyclic tail

	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a.md", "b.md", "c.md"}, cycles[0])
}

func TestDetectCyclesReportsEachOnce(t *testing.T) {
	g := New(nil)
	// Two independent 2-cycles.
	g.AddDynamicEdge("a.md", "b.md", types.EdgeReference)
	g.AddDynamicEdge("b.md", "a.md", types.EdgeReference)
	g.AddDynamicEdge("x.md", "y.md", types.EdgeReference)
	g.AddDynamicEdge("y.md", "x.md", types.EdgeReference)

	cycles := g.DetectCycles()
	assert.Len(t, cycles, 2)
}

func TestLoadingOrderWithCycle(t *testing.T) {
	g := New(nil)
	g.AddDynamicEdge("a.md", "b.md", types.EdgeReference)
	g.AddDynamicEdge("b.md", "a.md", types.EdgeReference)
	g.AddDynamicEdge("free.md", "a.md", types.EdgeReference)
	g.AddNode("island.md")

	order := g.LoadingOrder()
	require.Len(t, order.Cycles, 1)
	// The island has no dependencies and still gets ordered; the
	// cycle members and everything depending on them do not.
	assert.Equal(t, []string{"island.md"}, order.Loaded)
}

func TestReachableNodesWithFilter(t *testing.T) {
	g := New(nil)
	g.AddDynamicEdge("root.md", "ref.md", types.EdgeReference)
	g.AddDynamicEdge("root.md", "trans.md", types.EdgeTransclusion)
	g.AddDynamicEdge("ref.md", "deep.md", types.EdgeReference)
	g.AddDynamicEdge("trans.md", "deep2.md", types.EdgeTransclusion)

	assert.Equal(t, []string{"deep.md", "ref.md"}, g.ReachableNodes("root.md", ReferencesOnly))
	assert.Equal(t, []string{"deep2.md", "trans.md"}, g.ReachableNodes("root.md", TransclusionsOnly))
	assert.Equal(t, []string{"deep.md", "deep2.md", "ref.md", "trans.md"},
		g.ReachableNodes("root.md", nil))
}

func TestReachabilityTerminatesOnCycles(t *testing.T) {
	g := New(nil)
	g.AddDynamicEdge("a.md", "b.md", types.EdgeReference)
	g.AddDynamicEdge("b.md", "a.md", types.EdgeReference)

	assert.Equal(t, []string{"b.md"}, g.TransitiveDependencies("a.md"))
}

func TestMinimalContext(t *testing.T) {
	g := hierarchyGraph()

	ctx := g.MinimalContext("progress.md")
	assert.Equal(t, []string{"activeContext.md", "progress.md", "projectbrief.md", "techContext.md"}, ctx)

	assert.Equal(t, []string{"projectbrief.md"}, g.MinimalContext("projectbrief.md"))
}

func TestRemoveNode(t *testing.T) {
	g := hierarchyGraph()
	g.RemoveNode("activeContext.md")

	assert.NotContains(t, g.Nodes(), "activeContext.md")
	assert.Empty(t, g.Dependencies("progress.md"))
	assert.Empty(t, g.Dependents("projectbrief.md"))
}

func TestAdjacencyModelAndMermaid(t *testing.T) {
	g := New(nil)
	g.AddDynamicEdge("a.md", "b.md", types.EdgeReference)
	g.AddDynamicEdge("a.md", "c.md", types.EdgeReference)
	g.AddNode("lone.md")

	model := g.AdjacencyModel()
	assert.Equal(t, []string{"b.md", "c.md"}, model["a.md"])
	assert.Empty(t, model["lone.md"])
	assert.Len(t, model, 4)

	out := g.ExportMermaid()
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `a_md["a.md"] --> b_md["b.md"]`)
	assert.Contains(t, out, `lone_md["lone.md"]`)
}
