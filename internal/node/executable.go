package node

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ErrVersion marks a failure of the optional version-constraint check,
// including an unparseable probe output. Run modes may treat these as
// advisory; a missing executable is never wrapped with it.
var ErrVersion = errors.New("version requirement not satisfied")

// Executable names an external program a node depends on, with an optional
// version constraint checked before any node is scheduled.
type Executable struct {
	// Name is the program name resolved against PATH.
	Name string

	// Version is an optional constraint of the form ">=1.9", ">1.9.2" or
	// "=0.7". Empty means any version is acceptable.
	Version string

	// ProbeArgs overrides the arguments used to make the program print its
	// version. Defaults to ["--version"].
	ProbeArgs []string
}

// String renders the requirement for diagnostics.
func (e Executable) String() string {
	if e.Version == "" {
		return e.Name
	}
	return fmt.Sprintf("%s (%s)", e.Name, e.Version)
}

// versionPattern extracts the first dotted version number from probe output.
var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// Check verifies that the program is present on PATH and, when a constraint
// is declared, that the probed version satisfies it.
func (e Executable) Check(ctx context.Context) error {
	if _, err := exec.LookPath(e.Name); err != nil {
		return fmt.Errorf("executable not found: %s", e.Name)
	}
	if e.Version == "" {
		return nil
	}

	op, want, err := parseConstraint(e.Version)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}

	got, err := e.probe(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", e.Name, ErrVersion, err)
	}

	if !op.satisfied(compareVersions(got, want)) {
		return fmt.Errorf("%s: version %s does not satisfy %q: %w", e.Name, formatVersion(got), e.Version, ErrVersion)
	}
	return nil
}

// probe runs the program with its version arguments and extracts the dotted
// version number from combined output. Many tools print versions on stderr,
// hence CombinedOutput.
func (e Executable) probe(ctx context.Context) ([3]int, error) {
	args := e.ProbeArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}
	out, _ := exec.CommandContext(ctx, e.Name, args...).CombinedOutput()

	match := versionPattern.FindStringSubmatch(string(out))
	if match == nil {
		return [3]int{}, fmt.Errorf("could not determine version from %q output", strings.Join(append([]string{e.Name}, args...), " "))
	}
	return parseVersion(match), nil
}

type constraintOp int

const (
	opEqual constraintOp = iota
	opAtLeast
	opGreater
)

func (op constraintOp) satisfied(cmp int) bool {
	switch op {
	case opEqual:
		return cmp == 0
	case opAtLeast:
		return cmp >= 0
	default:
		return cmp > 0
	}
}

// parseConstraint splits a constraint like ">=1.9.2" into an operator and a
// version triple. Missing components compare as zero.
func parseConstraint(constraint string) (constraintOp, [3]int, error) {
	op := opAtLeast
	rest := constraint
	switch {
	case strings.HasPrefix(constraint, ">="):
		rest = constraint[2:]
	case strings.HasPrefix(constraint, ">"):
		op = opGreater
		rest = constraint[1:]
	case strings.HasPrefix(constraint, "="):
		op = opEqual
		rest = constraint[1:]
	}
	rest = strings.TrimSpace(rest)

	match := versionPattern.FindStringSubmatch(rest)
	if match == nil || match[0] != rest {
		return 0, [3]int{}, fmt.Errorf("invalid version constraint %q", constraint)
	}
	return op, parseVersion(match), nil
}

func parseVersion(match []string) [3]int {
	var v [3]int
	for i := 0; i < 3; i++ {
		if match[i+1] != "" {
			v[i], _ = strconv.Atoi(match[i+1])
		}
	}
	return v
}

func compareVersions(a, b [3]int) int {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func formatVersion(v [3]int) string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}
