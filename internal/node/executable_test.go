package node

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		constraint string
		op         constraintOp
		version    [3]int
	}{
		{">=1.9", opAtLeast, [3]int{1, 9, 0}},
		{">=1.9.2", opAtLeast, [3]int{1, 9, 2}},
		{">0.7", opGreater, [3]int{0, 7, 0}},
		{"=2.0.1", opEqual, [3]int{2, 0, 1}},
		{"1.4", opAtLeast, [3]int{1, 4, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			op, version, err := parseConstraint(tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.version, version)
		})
	}
}

func TestParseConstraintRejectsGarbage(t *testing.T) {
	for _, constraint := range []string{"", "latest", ">=", ">=x.y", "1.2 or so"} {
		_, _, err := parseConstraint(constraint)
		assert.Error(t, err, "constraint %q", constraint)
	}
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 0, compareVersions([3]int{1, 9, 2}, [3]int{1, 9, 2}))
	assert.Equal(t, -1, compareVersions([3]int{1, 8, 9}, [3]int{1, 9, 0}))
	assert.Equal(t, 1, compareVersions([3]int{2, 0, 0}, [3]int{1, 9, 9}))
}

func TestConstraintOps(t *testing.T) {
	assert.True(t, opAtLeast.satisfied(0))
	assert.True(t, opAtLeast.satisfied(1))
	assert.False(t, opAtLeast.satisfied(-1))
	assert.True(t, opGreater.satisfied(1))
	assert.False(t, opGreater.satisfied(0))
	assert.True(t, opEqual.satisfied(0))
	assert.False(t, opEqual.satisfied(1))
}

func TestExecutableString(t *testing.T) {
	assert.Equal(t, "samtools", Executable{Name: "samtools"}.String())
	assert.Equal(t, "samtools (>=0.1.18)", Executable{Name: "samtools", Version: ">=0.1.18"}.String())
}

func TestCheckMissingExecutable(t *testing.T) {
	err := Executable{Name: "definitely-not-a-real-program-7f3a"}.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	// Absence is fatal in every mode, so it must not be tagged as a
	// version failure.
	assert.False(t, errors.Is(err, ErrVersion))
}

func TestCheckVersionProbe(t *testing.T) {
	probe := Executable{
		Name:      "sh",
		ProbeArgs: []string{"-c", "echo version 2.3.1"},
	}

	t.Run("satisfied", func(t *testing.T) {
		probe.Version = ">=2.0"
		assert.NoError(t, probe.Check(context.Background()))
	})

	t.Run("unsatisfied", func(t *testing.T) {
		probe.Version = ">=3.0"
		err := probe.Check(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrVersion)
	})

	t.Run("exact", func(t *testing.T) {
		probe.Version = "=2.3.1"
		assert.NoError(t, probe.Check(context.Background()))
	})
}

func TestCheckUnparseableProbeOutput(t *testing.T) {
	probe := Executable{
		Name:      "sh",
		Version:   ">=1.0",
		ProbeArgs: []string{"-c", "echo no digits here"},
	}
	err := probe.Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersion)
}
