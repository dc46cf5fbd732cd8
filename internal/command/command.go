package command

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command describes a single external process and the output files it
// commits. Argv elements that exactly match a declared output path are
// rewritten to the staged temporary location before the process starts, so
// the program writes into the stage's private directory without knowing it.
type Command struct {
	// Argv is the program name followed by its arguments. Must not be empty.
	Argv []string

	// Outputs are the final output paths, relative to the working directory.
	Outputs []string

	// Stdout, when non-empty, is a final output path that receives the
	// process's standard output. It is staged and committed like any other
	// declared output and need not be repeated in Outputs.
	Stdout string

	// Stdin, when non-empty, is an existing file fed to standard input.
	Stdin string

	// Env is appended to the inherited environment.
	Env []string
}

// Run implements Stage. The process runs with workDir as its working
// directory; on success all declared outputs are committed, on any failure
// the staged files are discarded and no final path is touched.
func (c *Command) Run(ctx context.Context, workDir string) error {
	tempDir, err := stageTempDir(workDir)
	if err != nil {
		return fmt.Errorf("creating stage directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	var stderr bytes.Buffer
	cmd, cleanup, err := c.prepare(ctx, workDir, tempDir, &stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmd.Run(); err != nil {
		return processError(c.Program(), err, &stderr)
	}

	return commitOutputs(tempDir, workDir, c.allOutputs())
}

// OutputFiles implements Stage.
func (c *Command) OutputFiles() []string {
	return c.allOutputs()
}

// Programs implements Stage.
func (c *Command) Programs() []string {
	return []string{c.Program()}
}

// Program returns the name of the executed program.
func (c *Command) Program() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// prepare builds the exec.Cmd for one invocation, redirecting declared
// outputs into tempDir. The returned cleanup closes any opened files and must
// be called once the process has finished.
func (c *Command) prepare(ctx context.Context, workDir, tempDir string, stderr *bytes.Buffer) (*exec.Cmd, func(), error) {
	if len(c.Argv) == 0 {
		return nil, nil, fmt.Errorf("empty argv")
	}

	argv := make([]string, len(c.Argv))
	copy(argv, c.Argv)
	for i := 1; i < len(argv); i++ {
		for _, output := range c.Outputs {
			if argv[i] == output || resolve(workDir, argv[i]) == resolve(workDir, output) {
				argv[i] = stagedPath(tempDir, output)
				break
			}
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Stderr = stderr
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var closers []*os.File
	cleanup := func() {
		for _, f := range closers {
			f.Close()
		}
	}

	if c.Stdin != "" {
		in, err := os.Open(resolve(workDir, c.Stdin))
		if err != nil {
			return nil, nil, fmt.Errorf("opening stdin file: %w", err)
		}
		closers = append(closers, in)
		cmd.Stdin = in
	}

	if c.Stdout != "" {
		out, err := os.Create(stagedPath(tempDir, c.Stdout))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("staging stdout file: %w", err)
		}
		closers = append(closers, out)
		cmd.Stdout = out
	}

	return cmd, cleanup, nil
}

// allOutputs returns Outputs plus the Stdout target, if any, without
// duplicating a Stdout path already listed in Outputs.
func (c *Command) allOutputs() []string {
	outputs := make([]string, len(c.Outputs))
	copy(outputs, c.Outputs)
	if c.Stdout == "" {
		return outputs
	}
	for _, output := range outputs {
		if output == c.Stdout {
			return outputs
		}
	}
	return append(outputs, c.Stdout)
}

// processError wraps a process failure with its captured stderr, which is
// usually the only clue the underlying tool left behind.
func processError(program string, err error, stderr *bytes.Buffer) error {
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return fmt.Errorf("%s: %w", program, err)
	}
	return fmt.Errorf("%s: %w: %s", program, err, msg)
}
