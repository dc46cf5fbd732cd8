package manifest

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stagehand/internal/ctxlog"
)

// hclLoader is the HCL front-end. Manifests consist of task, group and
// locals blocks; locals are constant values usable as local.<name> inside
// the same file.
type hclLoader struct {
	parser *hclparse.Parser
}

func newHCLLoader() *hclLoader {
	return &hclLoader{parser: hclparse.NewParser()}
}

// hclRoot mirrors the top-level block structure of a manifest file.
type hclRoot struct {
	Locals []*hclLocals `hcl:"locals,block"`
	Tasks  []*hclTask   `hcl:"task,block"`
	Groups []*hclGroup  `hcl:"group,block"`
}

type hclLocals struct {
	Body hcl.Body `hcl:",remain"`
}

type hclTask struct {
	Name      string        `hcl:"name,label"`
	Command   []string      `hcl:"command,optional"`
	Stdout    string        `hcl:"stdout,optional"`
	Stdin     string        `hcl:"stdin,optional"`
	Inputs    []string      `hcl:"inputs,optional"`
	Outputs   []string      `hcl:"outputs,optional"`
	Threads   int           `hcl:"threads,optional"`
	DependsOn []string      `hcl:"depends_on,optional"`
	Stages    []*hclStage   `hcl:"stage,block"`
	Requires  []*hclRequire `hcl:"requires,block"`
}

type hclStage struct {
	Commands []*hclCommand `hcl:"command,block"`
	Pipes    []*hclPipe    `hcl:"pipe,block"`
}

type hclCommand struct {
	Argv    []string `hcl:"argv"`
	Stdout  string   `hcl:"stdout,optional"`
	Stdin   string   `hcl:"stdin,optional"`
	Outputs []string `hcl:"outputs,optional"`
}

type hclPipe struct {
	From int `hcl:"from"`
	To   int `hcl:"to"`
}

type hclRequire struct {
	Program string `hcl:"program"`
	Version string `hcl:"version,optional"`
}

type hclGroup struct {
	Name    string   `hcl:"name,label"`
	Members []string `hcl:"members"`
}

// loadFile parses and decodes one .hcl manifest into a partial model.
func (l *hclLoader) loadFile(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing HCL manifest.", "path", path)

	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}

	evalCtx, err := l.localsContext(file.Body)
	if err != nil {
		return nil, fmt.Errorf("evaluating locals in %s: %w", path, err)
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", path, diags)
	}

	model := &Model{}
	for _, task := range root.Tasks {
		translated, err := translateHCLTask(task)
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

// localsContext evaluates every locals block of a file into an evaluation
// context exposing the values as local.<name>. Locals are constants; one
// local may not reference another.
func (l *hclLoader) localsContext(body hcl.Body) (*hcl.EvalContext, error) {
	content, _, diags := body.PartialContent(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{{Type: "locals"}},
	})
	if diags.HasErrors() {
		return nil, diags
	}

	values := make(map[string]cty.Value)
	for _, block := range content.Blocks {
		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, diags
		}
		for name, attr := range attrs {
			value, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, diags
			}
			values[name] = value
		}
	}

	evalCtx := &hcl.EvalContext{Variables: map[string]cty.Value{}}
	if len(values) > 0 {
		evalCtx.Variables["local"] = cty.ObjectVal(values)
	}
	return evalCtx, nil
}

// translateHCLTask converts the decoded block into the model, folding the
// single-command shorthand into a one-stage task.
func translateHCLTask(task *hclTask) (*Task, error) {
	translated := &Task{
		Name:      task.Name,
		Inputs:    task.Inputs,
		Threads:   task.Threads,
		DependsOn: task.DependsOn,
	}
	for _, require := range task.Requires {
		translated.Requires = append(translated.Requires, Requirement{
			Program: require.Program,
			Version: require.Version,
		})
	}

	shorthand := len(task.Command) > 0
	if shorthand && len(task.Stages) > 0 {
		return nil, fmt.Errorf("task %q declares both command and stage blocks", task.Name)
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
