package graph

import (
	"fmt"

	"github.com/vk/stagehand/internal/node"
)

// RefreshStates discards every non-sticky state and recomputes the whole map
// bottom-up. Running and Error survive, everything else is re-derived from
// the filesystem and upstream states. Calling it twice without intervening
// changes yields an identical map.
func (g *Graph) RefreshStates() {
	for id := range g.known {
		if !g.known[id] {
			continue
		}
		if g.states[id] != Running && g.states[id] != Error {
			g.known[id] = false
		}
	}
	for id := range g.nodes {
		g.computeState(NodeID(id))
	}
}

// SetNodeState records an externally observed transition: the executor
// claiming a node (Running) or completing it (Done or Error). It then
// re-derives exactly the reverse-reachable set of the node, visiting each
// affected node once.
//
// The sweep is a topological drain over the precomputed intersection counts:
// a downstream node is finalized only when every incoming path from the
// changed node has been accounted for, and is re-derived only when some node
// on one of those paths actually changed state.
func (g *Graph) SetNodeState(id NodeID, state State) error {
	if state != Running && state != Error && state != Done {
		return fmt.Errorf("cannot set node state to %s: only running, error and done may be set", state)
	}
	g.states[id] = state
	g.known[id] = true

	remaining := make(map[NodeID]int, len(g.intersections[id]))
	for down, count := range g.intersections[id] {
		remaining[down] = count
	}
	needsUpdate := make(map[NodeID]bool, len(remaining))
	for _, down := range g.reverse[id] {
		needsUpdate[down] = true
	}

	var queue []NodeID
	for down, count := range remaining {
		if count == 0 {
			queue = append(queue, down)
		}
	}
	sortIDs(queue)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		changed := false
		if needsUpdate[current] {
			old := g.states[current]
			if old != Running && old != Error {
				g.known[current] = false
				changed = g.computeState(current) != old
			}
		}

		for _, down := range g.reverse[current] {
			remaining[down]--
			if changed {
				needsUpdate[down] = true
			}
			if remaining[down] == 0 {
				queue = append(queue, down)
			}
		}
		delete(remaining, current)
	}
	return nil
}

// computeState derives the state of one node, first deriving any unknown
// upstream states. The traversal uses an explicit stack so arbitrarily deep
// graphs cannot exhaust the goroutine stack.
func (g *Graph) computeState(id NodeID) State {
	type frame struct {
		id   NodeID
		next int
	}
	stack := []frame{{id: id}}

	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if g.known[f.id] {
			stack = stack[:len(stack)-1]
			continue
		}
		if upstream := g.edges[f.id]; f.next < len(upstream) {
			dep := upstream[f.next]
			f.next++
			if !g.known[dep] {
				stack = append(stack, frame{id: dep})
			}
			continue
		}
		g.states[f.id] = g.deriveState(f.id)
		g.known[f.id] = true
		stack = stack[:len(stack)-1]
	}
	return g.states[id]
}

// deriveState applies the per-kind transition rules given that every
// upstream state is known. Liveness-check failures map to Error rather than
// aborting the run.
func (g *Graph) deriveState(id NodeID) State {
	upstream := Done
	for _, dep := range g.edges[id] {
		if s := g.states[dep]; s > upstream {
			upstream = s
		}
	}

	n := g.nodes[id]
	if n.Kind() == node.KindComposite {
		// A composite node has nothing of its own to run.
		if upstream == Running || upstream == Runnable {
			return Queued
		}
		return upstream
	}

	switch upstream {
	case Done:
		done, err := n.IsDone()
		if err != nil {
			return g.livenessError(id, err)
		}
		if !done {
			return Runnable
		}
		outdated, err := n.IsOutdated()
		if err != nil {
			return g.livenessError(id, err)
		}
		if outdated {
			return Runnable
		}
		return Done

	case Running, Runnable, Queued:
		done, err := n.IsDone()
		if err != nil {
			return g.livenessError(id, err)
		}
		if done {
			// Output already exists but upstream work is pending: stale.
			return Outdated
		}
		return Queued

	default:
		// Outdated and Error propagate unchanged; Error dominates by order.
		return upstream
	}
}

// livenessError records a failed IsDone/IsOutdated check. Typically the cause
// is an input file removed between the existence and timestamp inspections;
// one node's environment failure must not abort the whole run.
func (g *Graph) livenessError(id NodeID, err error) State {
	g.logger.Error("Liveness check failed for node.",
		"node", g.nodes[id].Name(), "error", err)
	return Error
}
