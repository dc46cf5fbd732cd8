package cli

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := Parse([]string{"pipeline.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, []string{"pipeline.hcl"}, config.ManifestPaths)
	assert.Equal(t, ".", config.WorkDir)
	assert.Equal(t, runtime.NumCPU(), config.MaxThreads)
	assert.True(t, config.StrictVersions)
	assert.Equal(t, "text", config.LogFormat)
	assert.Equal(t, "info", config.LogLevel)
	assert.False(t, config.DryRun)
}

func TestParseAllFlags(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := Parse([]string{
		"--workdir", "/data/run1",
		"--max-threads", "8",
		"--dry-run",
		"--export-graph", "graph.dot",
		"--no-strict-versions",
		"--log-format", "json",
		"--log-level", "debug",
		"manifests/",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "/data/run1", config.WorkDir)
	assert.Equal(t, 8, config.MaxThreads)
	assert.True(t, config.DryRun)
	assert.Equal(t, "graph.dot", config.ExportGraphPath)
	assert.False(t, config.StrictVersions)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestParseNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, config)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseHelpExitsCleanly(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := Parse([]string{"--help"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, config)
}

func TestParseInvalidLogFormat(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"--log-format", "xml", "pipeline.hcl"}, &out)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseInvalidLogLevel(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"--log-level", "verbose", "pipeline.hcl"}, &out)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseUnknownFlag(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"--frobnicate", "pipeline.hcl"}, &out)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseListModes(t *testing.T) {
	var out bytes.Buffer
	config, _, err := Parse([]string{"--list-input-files", "--list-executables", "pipeline.hcl"}, &out)
	require.NoError(t, err)
	assert.True(t, config.ListInputs)
	assert.False(t, config.ListOutputs)
	assert.True(t, config.ListExecutables)
}
