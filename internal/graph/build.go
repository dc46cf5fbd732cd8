package graph

import (
	"context"
	"sort"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/node"
)

// Options controls construction-time validation.
type Options struct {
	// CheckExecutables enables the presence/version check of every required
	// executable. List-only modes switch it off.
	CheckExecutables bool

	// StrictVersions makes version-constraint failures fatal. Missing
	// executables are fatal regardless. When false, version failures are
	// logged as warnings.
	StrictVersions bool
}

// New traverses dependencies and subnodes from the given roots, builds the
// reverse-dependency index and intersection counts, validates the node set,
// and computes the initial state map. Validation failures are returned as a
// *ConstructionError before any resource is spent on execution.
func New(ctx context.Context, roots []node.Node, opts Options) (*Graph, error) {
	g := &Graph{logger: ctxlog.FromContext(ctx)}
	g.collect(roots)
	g.buildAdjacency()

	if err := g.validate(ctx, opts); err != nil {
		return nil, err
	}

	g.computeIntersections()

	g.states = make([]State, len(g.nodes))
	g.known = make([]bool, len(g.nodes))
	g.RefreshStates()

	g.logger.Debug("Dependency graph built.",
		"nodes", len(g.nodes), "top_nodes", len(g.top))
	return g, nil
}

// collect walks dependencies ∪ subnodes from the roots with an explicit
// worklist, de-duplicating by identity, and assigns arena handles in
// discovery order.
func (g *Graph) collect(roots []node.Node) {
	index := make(map[node.Node]NodeID)

	var worklist []node.Node
	for i := len(roots) - 1; i >= 0; i-- {
		worklist = append(worklist, roots[i])
	}

	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if _, seen := index[n]; seen {
			continue
		}
		index[n] = NodeID(len(g.nodes))
		g.nodes = append(g.nodes, n)

		upstream := append(append([]node.Node(nil), n.Dependencies()...), n.Subnodes()...)
		for i := len(upstream) - 1; i >= 0; i-- {
			worklist = append(worklist, upstream[i])
		}
	}

	g.index = index
}

// buildAdjacency fills the dependency, subnode and reverse index slices from
// the collected arena. Edge sets are deduplicated and sorted for
// deterministic iteration.
func (g *Graph) buildAdjacency() {
	n := len(g.nodes)
	g.deps = make([][]NodeID, n)
	g.subs = make([][]NodeID, n)
	g.edges = make([][]NodeID, n)
	g.reverse = make([][]NodeID, n)

	for id, nd := range g.nodes {
		g.deps[id] = g.lookupAll(nd.Dependencies())
		g.subs[id] = g.lookupAll(nd.Subnodes())

		seen := make(map[NodeID]struct{}, len(g.deps[id])+len(g.subs[id]))
		for _, up := range g.deps[id] {
			seen[up] = struct{}{}
		}
		for _, up := range g.subs[id] {
			seen[up] = struct{}{}
		}
		edges := make([]NodeID, 0, len(seen))
		for up := range seen {
			edges = append(edges, up)
		}
		sortIDs(edges)
		g.edges[id] = edges
	}

	for id, edges := range g.edges {
		for _, up := range edges {
			g.reverse[up] = append(g.reverse[up], NodeID(id))
		}
	}
	for id := range g.reverse {
		sortIDs(g.reverse[id])
	}

	for id := range g.nodes {
		if len(g.reverse[id]) == 0 {
			g.top = append(g.top, NodeID(id))
		}
	}
}

// lookupAll maps nodes to their arena handles, sorted.
func (g *Graph) lookupAll(nodes []node.Node) []NodeID {
	ids := make([]NodeID, 0, len(nodes))
	seen := make(map[NodeID]struct{}, len(nodes))
	for _, n := range nodes {
		id := g.index[n]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// computeIntersections precomputes, for every node, the number of distinct
// edges feeding into each node of its reverse-reachable closure. During an
// incremental sweep these counts tell the drain loop exactly when a
// downstream node has received all upstream signals and may be finalized.
func (g *Graph) computeIntersections() {
	g.intersections = make([]map[NodeID]int, len(g.nodes))

	for id := range g.nodes {
		counts := make(map[NodeID]int)
		stack := []NodeID{NodeID(id)}
		for len(stack) > 0 {
			x := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, dep := range g.reverse[x] {
				counts[dep]++
				if counts[dep] == 1 {
					stack = append(stack, dep)
				}
			}
		}
		// Direct dependents start one signal ahead: the initiating change
		// itself is their first signal.
		for _, dep := range g.reverse[id] {
			counts[dep]--
		}
		g.intersections[id] = counts
	}
}

func sortIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
