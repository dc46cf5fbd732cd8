// Package manifest loads pipeline definitions and translates them into
// nodes.
//
// Two front-ends, HCL and YAML, decode into one format-agnostic model before
// any node exists, so the rest of the system never knows which format a task
// came from. A run may mix files of both formats.
package manifest

import "context"

// Model is the format-agnostic description of a pipeline.
type Model struct {
	Tasks  []*Task
	Groups []*Group
}

// Task describes one executable node: its command stages, declared files,
// executable requirements, thread cost and upstream task names.
type Task struct {
	Name      string
	Stages    []*StageSpec
	Inputs    []string
	Requires  []Requirement
	Threads   int
	DependsOn []string
}

// StageSpec describes one command stage: one or more commands run
// concurrently, optionally connected by pipes. Stages of a task run
// sequentially in declaration order.
type StageSpec struct {
	Commands []*CommandSpec
	Pipes    []PipeSpec
}

// CommandSpec describes a single process within a stage.
type CommandSpec struct {
	Argv    []string
	Stdout  string
	Stdin   string
	Outputs []string
}

// PipeSpec connects stdout of command From to stdin of command To, both
// indices into the stage's command list.
type PipeSpec struct {
	From int
	To   int
}

// Requirement names an external program with an optional version constraint.
type Requirement struct {
	Program string
	Version string
}

// Group describes a composite node over named member tasks or groups.
type Group struct {
	Name    string
	Members []string
}

// Loader is the interface for a format-specific manifest loader.
type Loader interface {
	// Load reads every manifest under the given paths and merges them into
	// one model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// merge appends the other model's definitions to m.
func (m *Model) merge(other *Model) {
	m.Tasks = append(m.Tasks, other.Tasks...)
	m.Groups = append(m.Groups, other.Groups...)
}
