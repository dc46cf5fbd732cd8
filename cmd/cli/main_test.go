package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Usage:")
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, []string{"--help"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "MANIFEST_PATH")
}

func TestRunMissingManifestPath(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, []string{filepath.Join(t.TempDir(), "does-not-exist")})
	require.Error(t, err)
}

func TestRunEndToEnd(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "seed.txt"), []byte("data\n"), 0o644))
	manifestPath := filepath.Join(workDir, "pipeline.hcl")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
task "copy" {
  command = ["cp", "seed.txt", "copy.txt"]
  inputs  = ["seed.txt"]
  outputs = ["copy.txt"]
}
`), 0o644))

	var out bytes.Buffer
	err := run(&out, []string{"--workdir", workDir, "--log-level", "error", manifestPath})
	require.NoError(t, err, out.String())

	data, readErr := os.ReadFile(filepath.Join(workDir, "copy.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "data\n", string(data))
}
