package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/vk/stagehand/internal/node"
)

// WriteDOT renders the graph in Graphviz DOT syntax. Dependency edges are
// drawn solid from dependency to dependent, composite membership dashed.
func (g *Graph) WriteDOT(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "digraph pipeline {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "\trankdir = \"LR\";")

	for id, n := range g.nodes {
		shape := "box"
		if n.Kind() == node.KindComposite {
			shape = "folder"
		}
		fmt.Fprintf(w, "\tn%d [label=%q, shape=%s];\n", id, n.Name(), shape)
	}

	for id := range g.nodes {
		for _, dep := range g.deps[id] {
			fmt.Fprintf(w, "\tn%d -> n%d;\n", dep, id)
		}
		for _, sub := range g.subs[id] {
			fmt.Fprintf(w, "\tn%d -> n%d [style=dashed];\n", sub, id)
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// Describe returns a one-line description of a node for dry-run output.
func (g *Graph) Describe(id NodeID) string {
	n := g.nodes[id]
	parts := []string{fmt.Sprintf("%s [%s, %s]", n.Name(), n.Kind(), g.states[id])}
	if len(g.edges[id]) > 0 {
		names := make([]string, len(g.edges[id]))
		for i, dep := range g.edges[id] {
			names[i] = g.nodes[dep].Name()
		}
		parts = append(parts, "after "+strings.Join(names, ", "))
	}
	return strings.Join(parts, " ")
}
