// Package graph owns the dependency graph of a pipeline run: the
// reverse-dependency index built from a set of root nodes, the pre-execution
// validation of file and executable contracts, and the per-node state map
// with its incremental update algorithm.
//
// Node identity inside a graph is an opaque NodeID, an index into an arena
// assigned during construction. Adjacency is stored as sorted index slices so
// iteration order is deterministic and no pointer hashing leaks into
// behavior. All static structures (arena, adjacency, intersection counts) are
// immutable after construction; only the state map changes, and only through
// SetNodeState and RefreshStates.
package graph

import (
	"log/slog"
	"sort"

	"github.com/vk/stagehand/internal/node"
)

// NodeID is an opaque handle to a node within one graph.
type NodeID int

// Graph is the dependency graph over a traversed node set.
type Graph struct {
	logger *slog.Logger

	// nodes is the arena; NodeID indexes into it. index is the inverse
	// mapping, used only during construction to de-duplicate by identity.
	nodes []node.Node
	index map[node.Node]NodeID

	// deps and subs hold the declared upstream adjacency per node; edges is
	// their deduplicated union, the adjacency the state machine walks.
	deps  [][]NodeID
	subs  [][]NodeID
	edges [][]NodeID

	// reverse maps each node to the nodes that directly depend on it.
	reverse [][]NodeID

	// intersections holds, per node, the confluence counts over its
	// reverse-reachable closure driving the incremental sweep.
	intersections []map[NodeID]int

	// top lists nodes nothing depends on.
	top []NodeID

	states []State
	known  []bool
}

// Len returns the number of tracked nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node behind a handle.
func (g *Graph) Node(id NodeID) node.Node { return g.nodes[id] }

// Name returns the node's display name.
func (g *Graph) Name(id NodeID) string { return g.nodes[id].Name() }

// State returns the current state of one node.
func (g *Graph) State(id NodeID) State { return g.states[id] }

// States returns a copy of the full state map, indexed by NodeID.
func (g *Graph) States() []State {
	states := make([]State, len(g.states))
	copy(states, g.states)
	return states
}

// TopNodes returns the handles of nodes no other node depends on.
func (g *Graph) TopNodes() []NodeID {
	top := make([]NodeID, len(g.top))
	copy(top, g.top)
	return top
}

// Runnable returns the handles of all nodes currently in state Runnable, in
// ascending handle order.
func (g *Graph) Runnable() []NodeID {
	var ids []NodeID
	for id, state := range g.states {
		if state == Runnable {
			ids = append(ids, NodeID(id))
		}
	}
	return ids
}

// Census returns the number of nodes per state.
func (g *Graph) Census() map[State]int {
	census := make(map[State]int)
	for _, state := range g.states {
		census[state]++
	}
	return census
}

// InputFiles returns the sorted union of input paths consumed from outside
// the graph, i.e. excluding files some tracked node produces.
func (g *Graph) InputFiles() []string {
	produced := make(map[string]struct{})
	for _, n := range g.nodes {
		for _, path := range n.OutputFiles() {
			produced[path] = struct{}{}
		}
	}
	inputs := make(map[string]struct{})
	for _, n := range g.nodes {
		for _, path := range n.InputFiles() {
			if _, ok := produced[path]; !ok {
				inputs[path] = struct{}{}
			}
		}
	}
	return sortedKeys(inputs)
}

// OutputFiles returns the sorted union of every declared output path.
func (g *Graph) OutputFiles() []string {
	outputs := make(map[string]struct{})
	for _, n := range g.nodes {
		for _, path := range n.OutputFiles() {
			outputs[path] = struct{}{}
		}
	}
	return sortedKeys(outputs)
}

// Executables returns the sorted union of executable requirements, rendered
// with their version constraints.
func (g *Graph) Executables() []string {
	execs := make(map[string]struct{})
	for _, n := range g.nodes {
		for _, e := range n.Executables() {
			execs[e.String()] = struct{}{}
		}
	}
	return sortedKeys(execs)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
