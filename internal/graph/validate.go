package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vk/stagehand/internal/node"
)

// maxDiagnostics caps the number of concrete examples reported per violation
// category. Construction still fails as a whole if any violation exists.
const maxDiagnostics = 10

// Category collects the violations of one kind found during construction.
type Category struct {
	// Name describes the violation kind.
	Name string
	// Total counts every violation found, including ones beyond the cap.
	Total int
	// Examples holds at most maxDiagnostics concrete messages.
	Examples []string
}

func (c *Category) add(message string) {
	c.Total++
	if len(c.Examples) < maxDiagnostics {
		c.Examples = append(c.Examples, message)
	}
}

// ConstructionError reports every contract violation detected while building
// the graph, grouped by category. It is always fatal and always produced
// before any execution starts.
type ConstructionError struct {
	Categories []*Category
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph construction failed (max %d examples per category):", maxDiagnostics)
	for _, c := range e.Categories {
		fmt.Fprintf(&b, "\n  %s (%d):", c.Name, c.Total)
		for _, example := range c.Examples {
			fmt.Fprintf(&b, "\n    %s", example)
		}
		if c.Total > len(c.Examples) {
			fmt.Fprintf(&b, "\n    ... and %d more", c.Total-len(c.Examples))
		}
	}
	return b.String()
}

// validate runs every construction-time contract check: acyclicity,
// clobbered outputs, file dependencies and required executables.
func (g *Graph) validate(ctx context.Context, opts Options) error {
	var categories []*Category

	keep := func(c *Category) {
		if c.Total > 0 {
			categories = append(categories, c)
		}
	}

	// The remaining checks assume a DAG; closure computation does not
	// terminate on cyclic input.
	if cycles := g.checkAcyclic(); cycles.Total > 0 {
		return &ConstructionError{Categories: []*Category{cycles}}
	}
	keep(g.checkOutputFiles())

	undeclared, missing := g.checkInputFiles()
	keep(undeclared)
	keep(missing)

	if opts.CheckExecutables {
		keep(g.checkExecutables(ctx, opts.StrictVersions))
	}

	if len(categories) == 0 {
		return nil
	}
	return &ConstructionError{Categories: categories}
}

// checkAcyclic verifies the invariant that dependencies ∪ subnodes form a
// DAG, using an iterative three-color depth-first search.
func (g *Graph) checkAcyclic() *Category {
	category := &Category{Name: "dependency cycles"}

	const (
		white = iota // unvisited
		grey         // on the current path
		black        // fully explored
	)
	color := make([]int, len(g.nodes))

	for start := range g.nodes {
		if color[start] != white {
			continue
		}
		type frame struct {
			id   NodeID
			next int
		}
		stack := []frame{{id: NodeID(start)}}
		color[start] = grey

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			if f.next < len(g.edges[f.id]) {
				dep := g.edges[f.id][f.next]
				f.next++
				switch color[dep] {
				case white:
					color[dep] = grey
					stack = append(stack, frame{id: dep})
				case grey:
					category.add(fmt.Sprintf("cycle through node %q", g.nodes[dep].Name()))
				}
				continue
			}
			color[f.id] = black
			stack = stack[:len(stack)-1]
		}
	}
	return category
}

// checkOutputFiles rejects any output path declared by more than one node.
func (g *Graph) checkOutputFiles() *Category {
	category := &Category{Name: "clobbered outputs"}

	producers := make(map[string][]NodeID)
	for id, n := range g.nodes {
		for _, path := range n.OutputFiles() {
			producers[path] = append(producers[path], NodeID(id))
		}
	}

	paths := make([]string, 0, len(producers))
	for path := range producers {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		ids := producers[path]
		if len(ids) < 2 {
			continue
		}
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = fmt.Sprintf("%q", g.nodes[id].Name())
		}
		category.add(fmt.Sprintf("%d nodes declare output %s: %s", len(ids), path, strings.Join(names, ", ")))
	}
	return category
}

// checkInputFiles verifies the two input contracts: a file produced by a
// tracked node must be declared a dependency (direct or transitive) by every
// consumer, and a file no tracked node produces must already exist on disk.
func (g *Graph) checkInputFiles() (undeclared, missing *Category) {
	undeclared = &Category{Name: "undeclared dynamic dependencies"}
	missing = &Category{Name: "missing static input files"}

	producer := make(map[string]NodeID)
	for id, n := range g.nodes {
		for _, path := range n.OutputFiles() {
			if _, taken := producer[path]; !taken {
				producer[path] = NodeID(id)
			}
		}
	}

	closures := g.dependencyClosures()

	for id, n := range g.nodes {
		for _, path := range n.InputFiles() {
			if from, tracked := producer[path]; tracked {
				if _, declared := closures[id][from]; !declared {
					undeclared.add(fmt.Sprintf(
						"node %q consumes %s created by %q without depending on it",
						n.Name(), path, g.nodes[from].Name()))
				}
			} else if _, err := os.Stat(path); err != nil {
				missing.add(fmt.Sprintf(
					"file %s required by node %q does not exist and no node creates it",
					path, n.Name()))
			}
		}
	}
	return undeclared, missing
}

// dependencyClosures computes each node's transitive upstream closure over
// dependencies ∪ subnodes, bottom-up with an explicit stack.
func (g *Graph) dependencyClosures() []map[NodeID]struct{} {
	closures := make([]map[NodeID]struct{}, len(g.nodes))

	resolve := func(id NodeID) {
		type frame struct {
			id   NodeID
			next int
		}
		stack := []frame{{id: id}}
		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			if closures[f.id] != nil {
				stack = stack[:len(stack)-1]
				continue
			}
			if f.next < len(g.edges[f.id]) {
				dep := g.edges[f.id][f.next]
				f.next++
				if closures[dep] == nil {
					stack = append(stack, frame{id: dep})
				}
				continue
			}
			closure := make(map[NodeID]struct{}, len(g.edges[f.id]))
			for _, dep := range g.edges[f.id] {
				closure[dep] = struct{}{}
				for indirect := range closures[dep] {
					closure[indirect] = struct{}{}
				}
			}
			closures[f.id] = closure
			stack = stack[:len(stack)-1]
		}
	}

	for id := range g.nodes {
		resolve(NodeID(id))
	}
	return closures
}

// checkExecutables validates presence and version of the union of required
// executables. Version failures downgrade to warnings unless strict.
func (g *Graph) checkExecutables(ctx context.Context, strict bool) *Category {
	category := &Category{Name: "missing executables"}

	seen := make(map[string]struct{})
	var execs []node.Executable
	for _, n := range g.nodes {
		for _, e := range n.Executables() {
			key := e.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			execs = append(execs, e)
		}
	}
	sort.Slice(execs, func(i, j int) bool { return execs[i].String() < execs[j].String() })

	for _, e := range execs {
		err := e.Check(ctx)
		if err == nil {
			continue
		}
		if !strict && errors.Is(err, node.ErrVersion) {
			g.logger.Warn("Executable version check failed.", "executable", e.String(), "error", err)
			continue
		}
		category.add(err.Error())
	}
	return category
}
