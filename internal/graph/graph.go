// Package graph maintains the dependency structure between tracked
// files. Edges come in two layers: a static priority hierarchy fixed
// at construction (core before context, context before progress) and
// dynamic edges supplied by link extraction as content changes. Cycles
// among dynamic edges are legal at insert time; queries return them as
// data instead of failing.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/standardbeagle/membank/internal/debug"
	"github.com/standardbeagle/membank/internal/types"
)

// Graph is a directed dependency graph. An edge from→to reads "from
// depends on to": to must be loaded before from. Safe for concurrent
// use; mutation funnels through the coordinator's per-file write
// discipline, but read queries may run from anywhere.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]bool
	// edges[from][to] = kind. One edge per (from,to) pair; a dynamic
	// edge never overwrites a static one.
	edges map[string]map[string]types.EdgeKind
}

// New creates a graph seeded with static edges. Static edges are fixed
// for the life of the graph; RemoveDynamicEdge will not touch them.
func New(static []types.DependencyEdge) *Graph {
	g := &Graph{
		nodes: map[string]bool{},
		edges: map[string]map[string]types.EdgeKind{},
	}
	for _, e := range static {
		g.addEdgeLocked(e.From, e.To, types.EdgeStatic)
	}
	return g
}

// StaticEdgesFor derives the priority hierarchy from file categories:
// every context file depends on every core file, every progress file
// on every context file. Custom files get no static edges; they join
// the graph through dynamic links.
func StaticEdgesFor(files []*types.TrackedFile) []types.DependencyEdge {
	byCategory := map[types.Category][]string{}
	for _, f := range files {
		byCategory[f.Category] = append(byCategory[f.Category], f.Name)
	}
	for _, names := range byCategory {
		sort.Strings(names)
	}

	var edges []types.DependencyEdge
	link := func(dependents, dependencies []string) {
		for _, from := range dependents {
			for _, to := range dependencies {
				edges = append(edges, types.DependencyEdge{From: from, To: to, Kind: types.EdgeStatic})
			}
		}
	}
	link(byCategory[types.CategoryContext], byCategory[types.CategoryCore])
	link(byCategory[types.CategoryProgress], byCategory[types.CategoryContext])
	return edges
}

// AddNode registers a file with no edges yet.
func (g *Graph) AddNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[name] = true
}

// RemoveNode drops a file and every edge touching it.
func (g *Graph) RemoveNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.nodes, name)
	delete(g.edges, name)
	for _, targets := range g.edges {
		delete(targets, name)
	}
}

// AddDynamicEdge records a discovered link. Self-edges are ignored;
// static edges are never overwritten. Adding an edge that closes a
// cycle succeeds; cycle handling belongs to the query side.
func (g *Graph) AddDynamicEdge(from, to string, kind types.EdgeKind) {
	if from == to || kind == types.EdgeStatic {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(from, to, kind)
}

func (g *Graph) addEdgeLocked(from, to string, kind types.EdgeKind) {
	g.nodes[from] = true
	g.nodes[to] = true
	if g.edges[from] == nil {
		g.edges[from] = map[string]types.EdgeKind{}
	}
	if existing, ok := g.edges[from][to]; ok && existing == types.EdgeStatic {
		return
	}
	g.edges[from][to] = kind
}

// RemoveDynamicEdge drops a dynamic edge. Static edges survive.
func (g *Graph) RemoveDynamicEdge(from, to string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if targets, ok := g.edges[from]; ok {
		if kind, ok := targets[to]; ok && kind != types.EdgeStatic {
			delete(targets, to)
		}
	}
}

// ReplaceDynamicEdges swaps all dynamic edges originating at from for a
// new set, in one step. This is the link-extraction entry point: a
// rewrite of one file replaces that file's outgoing links wholesale.
func (g *Graph) ReplaceDynamicEdges(from string, edges []types.DependencyEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[from] = true
	for to, kind := range g.edges[from] {
		if kind != types.EdgeStatic {
			delete(g.edges[from], to)
		}
	}
	for _, e := range edges {
		if e.From != from || e.Kind == types.EdgeStatic || e.To == from {
			continue
		}
		g.addEdgeLocked(e.From, e.To, e.Kind)
	}
	debug.LogBank("replaced dynamic edges for %s: %d links\n", from, len(edges))
}

// Dependencies returns the direct targets of name's outgoing edges,
// sorted.
func (g *Graph) Dependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for to := range g.edges[name] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Dependents returns every file with a direct edge into name, sorted.
func (g *Graph) Dependents(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for from, targets := range g.edges {
		if _, ok := targets[name]; ok {
			out = append(out, from)
		}
	}
	sort.Strings(out)
	return out
}

// Edges returns a snapshot of every edge, sorted for determinism.
func (g *Graph) Edges() []types.DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.DependencyEdge
	for from, targets := range g.edges {
		for to, kind := range targets {
			out = append(out, types.DependencyEdge{From: from, To: to, Kind: kind})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Nodes returns the sorted node set.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Order is the result of a topological sort. When the graph has
// cycles, Loaded carries the valid order of the acyclic remainder and
// Cycles names every node group that could not be ordered.
type Order struct {
	Loaded []string
	Cycles [][]string
}

// LoadingOrder computes the order files should be loaded in:
// dependencies strictly before dependents (Kahn's algorithm). Nodes
// trapped in cycles are excluded from Loaded and reported in Cycles;
// the caller decides how to break the tie.
func (g *Graph) LoadingOrder() Order {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// in-degree for the load ordering counts unresolved dependencies.
	indeg := map[string]int{}
	for n := range g.nodes {
		indeg[n] = len(g.edges[n])
	}

	// Ready nodes in sorted order for deterministic output.
	var queue []string
	for n, d := range indeg {
		if d == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	var loaded []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		loaded = append(loaded, n)

		var freed []string
		for from, targets := range g.edges {
			if _, ok := targets[n]; !ok {
				continue
			}
			indeg[from]--
			if indeg[from] == 0 {
				freed = append(freed, from)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	order := Order{Loaded: loaded}
	if len(loaded) < len(g.nodes) {
		order.Cycles = g.detectCyclesLocked()
		debug.LogBank("loading order found %d cycle(s)\n", len(order.Cycles))
	}
	return order
}

// DetectCycles returns every distinct cycle in the graph. Each cycle
// is reported once, rotated so its lexicographically smallest node
// comes first.
func (g *Graph) DetectCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.detectCyclesLocked()
}

func (g *Graph) detectCyclesLocked() [][]string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := map[string]int{}
	var stack []string
	seen := map[string]bool{}
	var cycles [][]string

	var visit func(n string)
	visit = func(n string) {
		state[n] = inStack
		stack = append(stack, n)

		var targets []string
		for to := range g.edges[n] {
			targets = append(targets, to)
		}
		sort.Strings(targets)

		for _, to := range targets {
			switch state[to] {
			case unvisited:
				visit(to)
			case inStack:
				// Unwind the stack back to the re-entered node.
				start := len(stack) - 1
				for start >= 0 && stack[start] != to {
					start--
				}
				cycle := normalizeCycle(stack[start:])
				key := strings.Join(cycle, "\x00")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[n] = done
	}

	var nodes []string
	for n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if state[n] == unvisited {
			visit(n)
		}
	}
	return cycles
}

// normalizeCycle rotates a cycle so the smallest node leads, making
// the same cycle detected from different entry points compare equal.
func normalizeCycle(cycle []string) []string {
	min := 0
	for i, n := range cycle {
		if n < cycle[min] {
			min = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[min:]...)
	out = append(out, cycle[:min]...)
	return out
}

// EdgeFilter selects which edge kinds a reachability query follows.
// nil follows everything.
type EdgeFilter func(kind types.EdgeKind) bool

// ReferencesOnly follows only reference edges.
func ReferencesOnly(kind types.EdgeKind) bool { return kind == types.EdgeReference }

// TransclusionsOnly follows only transclusion edges.
func TransclusionsOnly(kind types.EdgeKind) bool { return kind == types.EdgeTransclusion }

// ReachableNodes returns every node reachable from from along edges
// accepted by filter, excluding from itself. Cycles are handled by the
// visited set; reachability over a cyclic graph still terminates.
func (g *Graph) ReachableNodes(from string, filter EdgeFilter) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for to, kind := range g.edges[n] {
			if filter != nil && !filter(kind) {
				continue
			}
			if !visited[to] {
				visited[to] = true
				stack = append(stack, to)
			}
		}
	}

	delete(visited, from)
	out := make([]string, 0, len(visited))
	for n := range visited {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// TransitiveDependencies is ReachableNodes over all edge kinds.
func (g *Graph) TransitiveDependencies(from string) []string {
	return g.ReachableNodes(from, nil)
}

// MinimalContext returns the smallest set of files that must accompany
// name for it to make sense: the file itself plus everything it
// transitively depends on.
func (g *Graph) MinimalContext(name string) []string {
	deps := g.TransitiveDependencies(name)
	out := append(deps, name)
	sort.Strings(out)
	return out
}

// AdjacencyModel returns each node's sorted dependency list, computed
// in one pass over the edge set. Exports reuse this map instead of
// re-querying per edge.
func (g *Graph) AdjacencyModel() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	model := make(map[string][]string, len(g.nodes))
	for n := range g.nodes {
		model[n] = nil
	}
	for from, targets := range g.edges {
		deps := make([]string, 0, len(targets))
		for to := range targets {
			deps = append(deps, to)
		}
		sort.Strings(deps)
		model[from] = deps
	}
	return model
}

// ExportMermaid renders the graph as a mermaid flowchart, one line per
// edge, nodes sorted. Built from the adjacency model so the edge set
// is walked exactly once.
func (g *Graph) ExportMermaid() string {
	model := g.AdjacencyModel()

	names := make([]string, 0, len(model))
	for n := range model {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, from := range names {
		if len(model[from]) == 0 {
			fmt.Fprintf(&b, "    %s\n", mermaidID(from))
			continue
		}
		for _, to := range model[from] {
			fmt.Fprintf(&b, "    %s --> %s\n", mermaidID(from), mermaidID(to))
		}
	}
	return b.String()
}

// mermaidID makes a file name safe as a mermaid node identifier while
// keeping it readable.
func mermaidID(name string) string {
	id := strings.NewReplacer(".", "_", "/", "_", " ", "_", "-", "_").Replace(name)
	return fmt.Sprintf("%s[%q]", id, name)
}
