package node

import (
	"context"
	"fmt"
)

// Group is a composite node: it bundles subnodes into one schedulable
// identity but has no executable action of its own. Its scheduling state is
// derived entirely from its members.
type Group struct {
	name     string
	subnodes []Node
	deps     []Node
}

// NewGroup builds a composite node over the given members.
func NewGroup(name string, members []Node, dependencies ...Node) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("group node requires a name")
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("group node %q has no members", name)
	}
	return &Group{name: name, subnodes: members, deps: dependencies}, nil
}

// Name implements Node.
func (g *Group) Name() string { return g.name }

// Kind implements Node.
func (g *Group) Kind() Kind { return KindComposite }

// Dependencies implements Node.
func (g *Group) Dependencies() []Node { return g.deps }

// Subnodes implements Node.
func (g *Group) Subnodes() []Node { return g.subnodes }

// InputFiles implements Node. A group consumes nothing itself.
func (g *Group) InputFiles() []string { return nil }

// OutputFiles implements Node. A group produces nothing itself.
func (g *Group) OutputFiles() []string { return nil }

// Executables implements Node.
func (g *Group) Executables() []Executable { return nil }

// Threads implements Node. Groups are never dispatched, so they hold no slot.
func (g *Group) Threads() int { return 0 }

// IsDone implements Node. Having no outputs of its own, a group is done
// whenever its members are, which the state derivation already accounts for.
func (g *Group) IsDone() (bool, error) { return true, nil }

// IsOutdated implements Node.
func (g *Group) IsOutdated() (bool, error) { return false, nil }

// Run implements Node. Dispatching a composite node is a scheduler bug.
func (g *Group) Run(context.Context, string) error {
	return fmt.Errorf("composite node %q has no executable action", g.name)
}
