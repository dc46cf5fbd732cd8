package manifest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/stagehand/internal/command"
	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/node"
)

// Build translates a loaded model into the pipeline's node set. Task and
// group names must be unique; depends_on and members references must
// resolve; reference cycles are rejected here so node construction always
// terminates. Declared file paths are resolved against workDir so node
// liveness checks are independent of the process working directory.
func Build(ctx context.Context, model *Model, workDir string) ([]node.Node, error) {
	logger := ctxlog.FromContext(ctx)

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	b := &builder{
		workDir: absWorkDir,
		tasks:   make(map[string]*Task, len(model.Tasks)),
		groups:  make(map[string]*Group, len(model.Groups)),
		built:   make(map[string]node.Node),
	}

	for _, task := range model.Tasks {
		if err := b.declare(task.Name, "task"); err != nil {
			return nil, err
		}
		b.tasks[task.Name] = task
	}
	for _, group := range model.Groups {
		if err := b.declare(group.Name, "group"); err != nil {
			return nil, err
		}
		b.groups[group.Name] = group
	}

	var roots []node.Node
	for _, task := range model.Tasks {
		built, err := b.resolve(task.Name, nil)
		if err != nil {
			return nil, err
		}
		roots = append(roots, built)
	}
	for _, group := range model.Groups {
		built, err := b.resolve(group.Name, nil)
		if err != nil {
			return nil, err
		}
		roots = append(roots, built)
	}

	logger.Debug("Manifest translated into nodes.", "count", len(roots))
	return roots, nil
}

type builder struct {
	workDir string
	tasks   map[string]*Task
	groups  map[string]*Group
	built   map[string]node.Node
}

func (b *builder) declare(name, kind string) error {
	if name == "" {
		return fmt.Errorf("%s without a name", kind)
	}
	if _, dup := b.tasks[name]; dup {
		return fmt.Errorf("duplicate definition of %q", name)
	}
	if _, dup := b.groups[name]; dup {
		return fmt.Errorf("duplicate definition of %q", name)
	}
	return nil
}

// resolve builds the named node, building its references first. The trail
// tracks the active reference chain to report cycles by name.
func (b *builder) resolve(name string, trail []string) (node.Node, error) {
	if built, ok := b.built[name]; ok {
		return built, nil
	}
	for _, active := range trail {
		if active == name {
			return nil, fmt.Errorf("reference cycle: %v -> %s", trail, name)
		}
	}
	trail = append(trail, name)

	if task, ok := b.tasks[name]; ok {
		built, err := b.buildTask(task, trail)
		if err != nil {
			return nil, err
		}
		b.built[name] = built
		return built, nil
	}
	if group, ok := b.groups[name]; ok {
		built, err := b.buildGroup(group, trail)
		if err != nil {
			return nil, err
		}
		b.built[name] = built
		return built, nil
	}
	return nil, fmt.Errorf("reference to undefined task or group %q", name)
}

func (b *builder) buildTask(task *Task, trail []string) (node.Node, error) {
	deps, err := b.resolveAll(task.DependsOn, trail)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", task.Name, err)
	}

	stages := make([]command.Stage, 0, len(task.Stages))
	for i, spec := range task.Stages {
		stage, err := b.buildStage(spec)
		if err != nil {
			return nil, fmt.Errorf("task %q stage %d: %w", task.Name, i+1, err)
		}
		stages = append(stages, stage)
	}

	execs := make([]node.Executable, 0, len(task.Requires))
	for _, require := range task.Requires {
		execs = append(execs, node.Executable{Name: require.Program, Version: require.Version})
	}

	return node.NewCommand(node.CommandConfig{
		Name:         task.Name,
		Stages:       stages,
		Dependencies: deps,
		Inputs:       b.resolvePaths(task.Inputs),
		Executables:  execs,
		Threads:      task.Threads,
	})
}

func (b *builder) buildGroup(group *Group, trail []string) (node.Node, error) {
	members, err := b.resolveAll(group.Members, trail)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", group.Name, err)
	}
	return node.NewGroup(group.Name, members)
}

func (b *builder) resolveAll(names []string, trail []string) ([]node.Node, error) {
	nodes := make([]node.Node, 0, len(names))
	for _, name := range names {
		built, err := b.resolve(name, trail)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, built)
	}
	return nodes, nil
}

// buildStage translates one stage spec: a single command stays a plain
// Command, several become a Parallel stage with the declared pipes.
func (b *builder) buildStage(spec *StageSpec) (command.Stage, error) {
	if len(spec.Commands) == 0 {
		return nil, fmt.Errorf("stage has no commands")
	}

	cmds := make([]*command.Command, 0, len(spec.Commands))
	for _, cmd := range spec.Commands {
		if len(cmd.Argv) == 0 {
			return nil, fmt.Errorf("command with empty argv")
		}
		cmds = append(cmds, &command.Command{
			Argv:    cmd.Argv,
			Outputs: b.resolvePaths(cmd.Outputs),
			Stdout:  b.resolvePath(cmd.Stdout),
			Stdin:   b.resolvePath(cmd.Stdin),
		})
	}

	if len(cmds) == 1 {
		if len(spec.Pipes) > 0 {
			return nil, fmt.Errorf("pipes declared for a single-command stage")
		}
		return cmds[0], nil
	}

	pipes := make([]command.Pipe, 0, len(spec.Pipes))
	for _, pipe := range spec.Pipes {
		pipes = append(pipes, command.Pipe{From: pipe.From, To: pipe.To})
	}
	return &command.Parallel{Commands: cmds, Pipes: pipes}, nil
}

func (b *builder) resolvePaths(paths []string) []string {
	resolved := make([]string, len(paths))
	for i, path := range paths {
		resolved[i] = b.resolvePath(path)
	}
	return resolved
}

func (b *builder) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.workDir, path)
}
