package manifest

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/stagehand/internal/ctxlog"
)

// yamlLoader is the YAML front-end. It accepts the same task/group surface
// as the HCL front-end, without the locals mechanism.
type yamlLoader struct{}

type yamlRoot struct {
	Tasks  []*yamlTask  `yaml:"tasks"`
	Groups []*yamlGroup `yaml:"groups"`
}

type yamlTask struct {
	Name      string         `yaml:"name"`
	Command   []string       `yaml:"command"`
	Stdout    string         `yaml:"stdout"`
	Stdin     string         `yaml:"stdin"`
	Inputs    []string       `yaml:"inputs"`
	Outputs   []string       `yaml:"outputs"`
	Threads   int            `yaml:"threads"`
	DependsOn []string       `yaml:"depends_on"`
	Stages    []*yamlStage   `yaml:"stages"`
	Requires  []*yamlRequire `yaml:"requires"`
}

type yamlStage struct {
	Commands []*yamlCommand `yaml:"commands"`
	Pipes    []*yamlPipe    `yaml:"pipes"`
}

type yamlCommand struct {
	Argv    []string `yaml:"argv"`
	Stdout  string   `yaml:"stdout"`
	Stdin   string   `yaml:"stdin"`
	Outputs []string `yaml:"outputs"`
}

type yamlPipe struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

type yamlRequire struct {
	Program string `yaml:"program"`
	Version string `yaml:"version"`
}

type yamlGroup struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// loadFile parses and decodes one .yaml/.yml manifest into a partial model.
func (l *yamlLoader) loadFile(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing YAML manifest.", "path", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var root yamlRoot
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	model := &Model{}
	for _, task := range root.Tasks {
		translated, err := translateYAMLTask(task)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		model.Tasks = append(model.Tasks, translated)
	}
	for _, group := range root.Groups {
		model.Groups = append(model.Groups, &Group{Name: group.Name, Members: group.Members})
	}
	return model, nil
}

// translateYAMLTask converts the decoded document into the model, folding
// the single-command shorthand into a one-stage task.
func translateYAMLTask(task *yamlTask) (*Task, error) {
	translated := &Task{
		Name:      task.Name,
		Inputs:    task.Inputs,
		Threads:   task.Threads,
		DependsOn: task.DependsOn,
	}
	if task.Name == "" {
		return nil, fmt.Errorf("task without a name")
	}
	for _, require := range task.Requires {
		translated.Requires = append(translated.Requires, Requirement{
			Program: require.Program,
			Version: require.Version,
		})
	}

	shorthand := len(task.Command) > 0
	if shorthand && len(task.Stages) > 0 {
		return nil, fmt.Errorf("task %q declares both command and stages", task.Name)
	}
	if !shorthand && len(task.Stages) == 0 {
		return nil, fmt.Errorf("task %q declares no command", task.Name)
	}

	if shorthand {
		translated.Stages = []*StageSpec{{
			Commands: []*CommandSpec{{
				Argv:    task.Command,
				Stdout:  task.Stdout,
				Stdin:   task.Stdin,
				Outputs: task.Outputs,
			}},
		}}
		return translated, nil
	}

	if len(task.Outputs) > 0 || task.Stdout != "" || task.Stdin != "" {
		return nil, fmt.Errorf("task %q must declare outputs on its stage commands", task.Name)
	}
	for _, stage := range task.Stages {
		spec := &StageSpec{}
		for _, cmd := range stage.Commands {
			spec.Commands = append(spec.Commands, &CommandSpec{
				Argv:    cmd.Argv,
				Stdout:  cmd.Stdout,
				Stdin:   cmd.Stdin,
				Outputs: cmd.Outputs,
			})
		}
		for _, pipe := range stage.Pipes {
			spec.Pipes = append(spec.Pipes, PipeSpec{From: pipe.From, To: pipe.To})
		}
		translated.Stages = append(translated.Stages, spec)
	}
	return translated, nil
}
