package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// Pipe connects the standard output of one Parallel member to the standard
// input of another. Indices refer to positions in Parallel.Commands.
type Pipe struct {
	From int
	To   int
}

// Parallel runs its member commands concurrently as one stage. Members may be
// connected with Pipes; if any member fails, the remaining members are
// terminated and none of the stage's outputs are committed.
type Parallel struct {
	Commands []*Command
	Pipes    []Pipe
}

// Run implements Stage. All members share one staging directory and the
// stage's outputs are committed only after every member has exited zero.
func (p *Parallel) Run(ctx context.Context, workDir string) error {
	if len(p.Commands) == 0 {
		return fmt.Errorf("parallel stage has no commands")
	}

	tempDir, err := stageTempDir(workDir)
	if err != nil {
		return fmt.Errorf("creating stage directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	group, groupCtx := errgroup.WithContext(ctx)

	cmds := make([]*exec.Cmd, len(p.Commands))
	stderrs := make([]*bytes.Buffer, len(p.Commands))
	cleanups := make([]func(), len(p.Commands))
	for i, member := range p.Commands {
		stderrs[i] = &bytes.Buffer{}
		// groupCtx terminates every sibling as soon as one member fails.
		cmd, cleanup, err := member.prepare(groupCtx, workDir, tempDir, stderrs[i])
		if err != nil {
			for j := 0; j < i; j++ {
				cleanups[j]()
			}
			return err
		}
		cmds[i] = cmd
		cleanups[i] = cleanup
	}
	defer func() {
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()

	writers, readers, err := p.connectPipes(cmds)
	if err != nil {
		return err
	}

	for i := range cmds {
		group.Go(p.runMember(cmds[i], p.Commands[i], stderrs[i], writers[i], readers[i]))
	}

	if err := group.Wait(); err != nil {
		return err
	}

	return commitOutputs(tempDir, workDir, p.stageOutputs())
}

// OutputFiles implements Stage.
func (p *Parallel) OutputFiles() []string {
	return p.stageOutputs()
}

// Programs implements Stage.
func (p *Parallel) Programs() []string {
	programs := make([]string, 0, len(p.Commands))
	for _, member := range p.Commands {
		programs = append(programs, member.Program())
	}
	return programs
}

// connectPipes wires the declared stdin/stdout pairs. It returns, per member,
// the pipe ends that member must close when it exits: the write end so that
// downstream readers observe EOF, and the read end so that an upstream writer
// blocked on a dead consumer is released.
func (p *Parallel) connectPipes(cmds []*exec.Cmd) ([]*io.PipeWriter, []*io.PipeReader, error) {
	writers := make([]*io.PipeWriter, len(cmds))
	readers := make([]*io.PipeReader, len(cmds))
	for _, pipe := range p.Pipes {
		if pipe.From < 0 || pipe.From >= len(cmds) || pipe.To < 0 || pipe.To >= len(cmds) {
			return nil, nil, fmt.Errorf("pipe references command %d..%d outside stage", pipe.From, pipe.To)
		}
		if cmds[pipe.From].Stdout != nil {
			return nil, nil, fmt.Errorf("command %d already has a stdout destination", pipe.From)
		}
		if cmds[pipe.To].Stdin != nil {
			return nil, nil, fmt.Errorf("command %d already has a stdin source", pipe.To)
		}
		r, w := io.Pipe()
		cmds[pipe.From].Stdout = w
		cmds[pipe.To].Stdin = r
		writers[pipe.From] = w
		readers[pipe.To] = r
	}
	return writers, readers, nil
}

// runMember returns the goroutine body for one member process.
func (p *Parallel) runMember(cmd *exec.Cmd, member *Command, stderr *bytes.Buffer, writer *io.PipeWriter, reader *io.PipeReader) func() error {
	return func() error {
		err := cmd.Run()
		if writer != nil {
			writer.CloseWithError(err)
		}
		if reader != nil {
			reader.CloseWithError(err)
		}
		if err != nil {
			return processError(member.Program(), err, stderr)
		}
		return nil
	}
}

// stageOutputs returns the union of every member's declared outputs.
func (p *Parallel) stageOutputs() []string {
	var outputs []string
	for _, member := range p.Commands {
		outputs = append(outputs, member.allOutputs()...)
	}
	return outputs
}
