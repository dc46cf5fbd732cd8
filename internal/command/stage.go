// Package command models the execution of external processes as stages.
//
// A stage runs one or more OS-level processes as a unit and commits its
// declared output files atomically: while a stage runs, every declared output
// is written under a private temporary directory, and only after the whole
// stage has succeeded are the files moved to their final paths with a rename.
// A failed stage leaves no final path touched.
package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Stage is a schedulable unit of process execution. Implementations are
// Command (one process), Parallel (concurrent, optionally piped processes)
// and Sequential (stages run one after another).
type Stage interface {
	// Run executes the stage with workDir as the working directory of every
	// process. Declared outputs exist at their final paths if and only if
	// Run returns nil.
	Run(ctx context.Context, workDir string) error

	// OutputFiles returns the final paths of every output the stage commits,
	// relative to the working directory.
	OutputFiles() []string

	// Programs returns the names of the external programs the stage invokes.
	Programs() []string
}

// Sequential composes stages that run strictly one after another. A stage
// starts only after the previous stage has exited successfully and committed
// its outputs.
type Sequential struct {
	Stages []Stage
}

// Run implements Stage.
func (s *Sequential) Run(ctx context.Context, workDir string) error {
	for i, stage := range s.Stages {
		if err := stage.Run(ctx, workDir); err != nil {
			return fmt.Errorf("stage %d/%d: %w", i+1, len(s.Stages), err)
		}
	}
	return nil
}

// OutputFiles implements Stage.
func (s *Sequential) OutputFiles() []string {
	var files []string
	for _, stage := range s.Stages {
		files = append(files, stage.OutputFiles()...)
	}
	return files
}

// Programs implements Stage.
func (s *Sequential) Programs() []string {
	var programs []string
	for _, stage := range s.Stages {
		programs = append(programs, stage.Programs()...)
	}
	return programs
}

// stageTempDir creates the private temporary directory for one stage
// invocation. It lives under the working directory so that committing an
// output is a same-filesystem rename.
func stageTempDir(workDir string) (string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(workDir, ".stagehand-tmp-")
}

// commitOutputs moves every staged output from the temporary directory to its
// final path. The caller must only invoke it after the whole stage succeeded;
// each individual move is an atomic rename.
func commitOutputs(tempDir, workDir string, outputs []string) error {
	for _, output := range outputs {
		staged := stagedPath(tempDir, output)
		if _, err := os.Stat(staged); err != nil {
			return fmt.Errorf("declared output %q was not created: %w", output, err)
		}
	}
	for _, output := range outputs {
		final := resolve(workDir, output)
		if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
			return fmt.Errorf("creating directory for output %q: %w", output, err)
		}
		if err := os.Rename(stagedPath(tempDir, output), final); err != nil {
			return fmt.Errorf("committing output %q: %w", output, err)
		}
	}
	return nil
}

// stagedPath returns the temporary location of a declared output while its
// stage is running. Outputs are staged flat, keyed by base name; two outputs
// of one stage sharing a base name is rejected at construction time.
func stagedPath(tempDir, output string) string {
	return filepath.Join(tempDir, filepath.Base(output))
}

// resolve interprets a declared path against the working directory. Paths may
// be declared absolute (the manifest layer resolves them at build time) or
// relative to workDir.
func resolve(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}
