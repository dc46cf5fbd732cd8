// Package testutil provides shared helpers for integration-style tests.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stagehand/internal/app"
	"github.com/vk/stagehand/internal/manifest"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a pipeline test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	WorkDir   string
}

// RunPipelineTest provides a standardized harness: it writes the given files
// into a temporary workspace (manifests under manifests/, everything else
// relative to the workspace root), builds the app over that workspace and
// runs it. The mutate callback may adjust the config before the run.
func RunPipelineTest(t *testing.T, files map[string]string, mutate func(*app.Config)) *HarnessResult {
	t.Helper()

	workDir := t.TempDir()
	manifestDir := filepath.Join(workDir, "manifests")
	require.NoError(t, os.MkdirAll(manifestDir, 0o755))

	for name, content := range files {
		path := filepath.Join(workDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return RerunPipelineTest(t, workDir, mutate)
}

// RerunPipelineTest runs the app over an existing workspace, typically one a
// previous RunPipelineTest call populated. Incremental-behavior tests use it
// to rerun the same pipeline against the artifacts of the first run.
func RerunPipelineTest(t *testing.T, workDir string, mutate func(*app.Config)) *HarnessResult {
	t.Helper()

	manifestDir := filepath.Join(workDir, "manifests")

	cfg, err := app.NewConfig(app.Config{
		ManifestPaths: []string{manifestDir},
		WorkDir:       workDir,
		MaxThreads:    4,
		LogLevel:      "debug",
		LogFormat:     "text",
	})
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	logBuffer := &SafeBuffer{}
	testApp, err := app.NewApp(logBuffer, cfg, manifest.NewLoader())
	if err != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: err, WorkDir: workDir}
	}

	runErr := testApp.Run(context.Background())
	return &HarnessResult{LogOutput: logBuffer.String(), Err: runErr, WorkDir: workDir}
}
