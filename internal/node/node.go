// Package node defines the unit of work scheduled by the dependency graph.
//
// A node declares its upstream dependencies, the files it consumes and
// produces, the external programs it invokes and a scalar thread cost. The
// graph derives scheduling state from this surface alone; identity is by
// reference and never derived from content.
package node

import "context"

// Kind tags a node as either an executable unit of work or a purely
// composite grouping of other nodes.
type Kind int

const (
	// KindExecutable marks a node that runs command stages of its own.
	KindExecutable Kind = iota

	// KindComposite marks a node with no executable action; its scheduling
	// state is derived entirely from its subnodes.
	KindComposite
)

// String returns the lower-case tag name.
func (k Kind) String() string {
	if k == KindComposite {
		return "composite"
	}
	return "executable"
}

// Node is the capability contract consumed by the graph and the executor.
// All methods other than Run must be cheap and free of side effects, and all
// attributes are immutable once the node has been handed to a graph.
type Node interface {
	// Name identifies the node in diagnostics and exports. Names need not be
	// unique; graph identity is by reference.
	Name() string

	// Kind reports whether the node is executable or composite.
	Kind() Kind

	// Dependencies returns the nodes that must complete before this node may
	// run.
	Dependencies() []Node

	// Subnodes returns the nodes composed into this node.
	Subnodes() []Node

	// InputFiles returns the paths the node reads.
	InputFiles() []string

	// OutputFiles returns the paths the node commits.
	OutputFiles() []string

	// Executables enumerates every external program the node invokes, so
	// presence and version can be validated before anything is scheduled.
	Executables() []Executable

	// Threads is the node's scalar resource cost.
	Threads() int

	// IsDone reports whether the node's outputs exist. An error means the
	// check itself failed (e.g. a file vanished mid-inspection) and maps to
	// an error state, never to a crash.
	IsDone() (bool, error)

	// IsOutdated reports whether existing outputs are stale relative to the
	// node's inputs. Only meaningful when IsDone returned true.
	IsOutdated() (bool, error)

	// Run performs the node's work with workDir as the working directory.
	// Outputs are committed atomically; on error no final path was touched.
	Run(ctx context.Context, workDir string) error
}
