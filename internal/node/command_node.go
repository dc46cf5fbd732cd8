package node

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/stagehand/internal/command"
	"github.com/vk/stagehand/internal/fsutil"
)

// CommandConfig carries the immutable attributes of a command-backed node.
type CommandConfig struct {
	Name         string
	Stages       []command.Stage
	Dependencies []Node
	Inputs       []string
	Outputs      []string
	Executables  []Executable
	Threads      int
}

// CommandNode is an executable node backed by one or more command stages run
// sequentially. Its outputs are the union of its stages' declared outputs.
type CommandNode struct {
	name    string
	stages  *command.Sequential
	deps    []Node
	inputs  []string
	outputs []string
	execs   []Executable
	threads int
}

// NewCommand builds a command node. It rejects configurations the execution
// model cannot commit atomically, such as two outputs of one node sharing a
// base name (outputs are staged flat per stage).
func NewCommand(cfg CommandConfig) (*CommandNode, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("command node requires a name")
	}
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("command node %q has no stages", cfg.Name)
	}

	stages := &command.Sequential{Stages: cfg.Stages}
	outputs := stages.OutputFiles()
	seen := make(map[string]string, len(outputs))
	for _, output := range outputs {
		base := filepath.Base(output)
		if prev, ok := seen[base]; ok && prev != output {
			return nil, fmt.Errorf("command node %q stages %q and %q under the same name", cfg.Name, prev, output)
		}
		seen[base] = output
	}

	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}

	execs := cfg.Executables
	if len(execs) == 0 {
		for _, program := range stages.Programs() {
			execs = append(execs, Executable{Name: program})
		}
	}

	return &CommandNode{
		name:    cfg.Name,
		stages:  stages,
		deps:    cfg.Dependencies,
		inputs:  cfg.Inputs,
		outputs: outputs,
		execs:   execs,
		threads: threads,
	}, nil
}

// Name implements Node.
func (n *CommandNode) Name() string { return n.name }

// Kind implements Node.
func (n *CommandNode) Kind() Kind { return KindExecutable }

// Dependencies implements Node.
func (n *CommandNode) Dependencies() []Node { return n.deps }

// Subnodes implements Node.
func (n *CommandNode) Subnodes() []Node { return nil }

// InputFiles implements Node.
func (n *CommandNode) InputFiles() []string { return n.inputs }

// OutputFiles implements Node.
func (n *CommandNode) OutputFiles() []string { return n.outputs }

// Executables implements Node.
func (n *CommandNode) Executables() []Executable { return n.execs }

// Threads implements Node.
func (n *CommandNode) Threads() int { return n.threads }

// IsDone implements Node: done when every declared output exists.
func (n *CommandNode) IsDone() (bool, error) {
	if len(n.outputs) == 0 {
		return false, nil
	}
	return fsutil.AllExist(n.outputs)
}

// IsOutdated implements Node: outputs are stale when the newest input was
// modified after the oldest output. Nodes without inputs never go stale.
func (n *CommandNode) IsOutdated() (bool, error) {
	if len(n.inputs) == 0 || len(n.outputs) == 0 {
		return false, nil
	}
	return fsutil.ModifiedAfter(n.inputs, n.outputs)
}

// Run implements Node by running the stages in order.
func (n *CommandNode) Run(ctx context.Context, workDir string) error {
	if err := n.stages.Run(ctx, workDir); err != nil {
		return fmt.Errorf("node %q: %w", n.name, err)
	}
	return nil
}
