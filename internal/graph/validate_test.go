package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stagehand/internal/node"
)

func TestValidateRejectsCycle(t *testing.T) {
	a := &testNode{name: "A"}
	b := &testNode{name: "B", deps: []node.Node{a}}
	a.deps = []node.Node{b}

	_, err := New(testContext(), []node.Node{a}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycles")
}

func TestValidateMissingStaticInput(t *testing.T) {
	consumer := &testNode{
		name:   "consumer",
		inputs: []string{filepath.Join(t.TempDir(), "never-created.txt")},
	}

	_, err := New(testContext(), []node.Node{consumer}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing static input files")
	assert.Contains(t, err.Error(), "never-created.txt")
}

func TestValidateStaticInputOnDiskAccepted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.fasta")
	require.NoError(t, os.WriteFile(path, []byte(">chr1\nACGT\n"), 0o644))

	consumer := &testNode{name: "consumer", inputs: []string{path}}
	_, err := New(testContext(), []node.Node{consumer}, Options{})
	assert.NoError(t, err)
}

func TestValidateUndeclaredDynamicDependency(t *testing.T) {
	producer := &testNode{name: "producer", outputs: []string{"/work/data.sam"}}
	consumer := &testNode{name: "consumer", inputs: []string{"/work/data.sam"}}

	_, err := New(testContext(), []node.Node{producer, consumer}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared dynamic dependencies")
	assert.Contains(t, err.Error(), "consumer")
	assert.Contains(t, err.Error(), "producer")
}

func TestValidateTransitiveDependencyDeclaresInput(t *testing.T) {
	producer := &testNode{name: "producer", outputs: []string{"/work/data.sam"}}
	middle := &testNode{name: "middle", deps: []node.Node{producer}}
	consumer := &testNode{
		name:   "consumer",
		deps:   []node.Node{middle},
		inputs: []string{"/work/data.sam"},
	}

	_, err := New(testContext(), []node.Node{consumer}, Options{})
	assert.NoError(t, err)
}

func TestValidateMissingExecutable(t *testing.T) {
	n := &testNode{
		name:  "aligner",
		execs: []node.Executable{{Name: "definitely-not-a-real-program-7f3a"}},
	}

	_, err := New(testContext(), []node.Node{n}, Options{CheckExecutables: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing executables")
	assert.Contains(t, err.Error(), "definitely-not-a-real-program-7f3a")
}

func TestValidateExecutablesSkippedByDefault(t *testing.T) {
	n := &testNode{
		name:  "aligner",
		execs: []node.Executable{{Name: "definitely-not-a-real-program-7f3a"}},
	}

	_, err := New(testContext(), []node.Node{n}, Options{})
	assert.NoError(t, err)
}

func TestConstructionErrorCapsExamples(t *testing.T) {
	category := &Category{Name: "clobbered outputs"}
	for i := 0; i < maxDiagnostics+5; i++ {
		category.add("example")
	}

	assert.Equal(t, maxDiagnostics+5, category.Total)
	assert.Len(t, category.Examples, maxDiagnostics)

	err := &ConstructionError{Categories: []*Category{category}}
	assert.Contains(t, err.Error(), "... and 5 more")
}
