package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/graph"
	"github.com/vk/stagehand/internal/node"
)

// gauge tracks the peak of a concurrent counter.
type gauge struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (g *gauge) enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	if g.current > g.peak {
		g.peak = g.current
	}
}

func (g *gauge) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current--
}

func (g *gauge) max() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

// fakeNode is a Node whose Run succeeds or fails on demand.
type fakeNode struct {
	name    string
	deps    []node.Node
	threads int
	fail    bool
	delay   time.Duration
	tracker *gauge

	mu   sync.Mutex
	done bool
	runs atomic.Int64
}

func (n *fakeNode) Name() string                   { return n.name }
func (n *fakeNode) Kind() node.Kind                { return node.KindExecutable }
func (n *fakeNode) Dependencies() []node.Node      { return n.deps }
func (n *fakeNode) Subnodes() []node.Node          { return nil }
func (n *fakeNode) InputFiles() []string           { return nil }
func (n *fakeNode) OutputFiles() []string          { return nil }
func (n *fakeNode) Executables() []node.Executable { return nil }
func (n *fakeNode) Threads() int                   { return n.threads }

func (n *fakeNode) IsDone() (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.done, nil
}

func (n *fakeNode) IsOutdated() (bool, error) { return false, nil }

func (n *fakeNode) Run(context.Context, string) error {
	n.runs.Add(1)
	if n.tracker != nil {
		n.tracker.enter()
		defer n.tracker.leave()
	}
	if n.delay > 0 {
		time.Sleep(n.delay)
	}
	if n.fail {
		return fmt.Errorf("simulated failure")
	}
	n.mu.Lock()
	n.done = true
	n.mu.Unlock()
	return nil
}

func testContext() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

func buildGraph(t *testing.T, roots ...node.Node) *graph.Graph {
	t.Helper()
	g, err := graph.New(testContext(), roots, graph.Options{})
	require.NoError(t, err)
	return g
}

func stateOf(g *graph.Graph, name string) graph.State {
	for id := 0; id < g.Len(); id++ {
		if g.Name(graph.NodeID(id)) == name {
			return g.State(graph.NodeID(id))
		}
	}
	panic("unknown node: " + name)
}

func TestRunExecutesChainToCompletion(t *testing.T) {
	a := &fakeNode{name: "A", threads: 1}
	b := &fakeNode{name: "B", threads: 1, deps: []node.Node{a}}
	c := &fakeNode{name: "C", threads: 1, deps: []node.Node{b}}
	g := buildGraph(t, c)

	err := New(g, 4, t.TempDir()).Run(testContext())
	require.NoError(t, err)

	for _, n := range []*fakeNode{a, b, c} {
		assert.Equal(t, int64(1), n.runs.Load(), "node %s", n.name)
		assert.Equal(t, graph.Done, stateOf(g, n.name))
	}
}

func TestRunRespectsThreadBudget(t *testing.T) {
	tracker := &gauge{}
	var roots []node.Node
	for i := 0; i < 6; i++ {
		roots = append(roots, &fakeNode{
			name:    fmt.Sprintf("job-%d", i),
			threads: 1,
			delay:   20 * time.Millisecond,
			tracker: tracker,
		})
	}
	g := buildGraph(t, roots...)

	err := New(g, 2, t.TempDir()).Run(testContext())
	require.NoError(t, err)

	assert.LessOrEqual(t, tracker.max(), 2)
	for _, root := range roots {
		assert.Equal(t, int64(1), root.(*fakeNode).runs.Load())
	}
}

func TestRunFailureSkipsDependentsButNotSiblings(t *testing.T) {
	a := &fakeNode{name: "A", threads: 1, fail: true}
	b := &fakeNode{name: "B", threads: 1, deps: []node.Node{a}}
	c := &fakeNode{name: "C", threads: 1}
	g := buildGraph(t, b, c)

	err := New(g, 2, t.TempDir()).Run(testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A")
	assert.NotContains(t, err.Error(), "B")

	assert.Equal(t, int64(0), b.runs.Load())
	assert.Equal(t, int64(1), c.runs.Load())
	assert.Equal(t, graph.Error, stateOf(g, "A"))
	assert.Equal(t, graph.Done, stateOf(g, "C"))
}

func TestRunOversizedNodeStillRuns(t *testing.T) {
	wide := &fakeNode{name: "wide", threads: 8}
	g := buildGraph(t, wide)

	err := New(g, 2, t.TempDir()).Run(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(1), wide.runs.Load())
}

func TestRunOversizedNodeClaimsWholeBudget(t *testing.T) {
	tracker := &gauge{}
	wide := &fakeNode{name: "wide", threads: 8, delay: 30 * time.Millisecond, tracker: tracker}
	narrow := &fakeNode{name: "narrow", threads: 1, delay: 30 * time.Millisecond, tracker: tracker}
	g := buildGraph(t, wide, narrow)

	err := New(g, 2, t.TempDir()).Run(testContext())
	require.NoError(t, err)

	// Either order is fine; they must not overlap.
	assert.Equal(t, 1, tracker.max())
}

func TestRunAlreadyDoneGraphIsNoOp(t *testing.T) {
	a := &fakeNode{name: "A", threads: 1, done: true}
	g := buildGraph(t, a)

	err := New(g, 2, t.TempDir()).Run(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(0), a.runs.Load())
	assert.Equal(t, graph.Done, stateOf(g, "A"))
}

func TestRunCancelledContextStopsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext())
	cancel()

	a := &fakeNode{name: "A", threads: 1}
	g := buildGraph(t, a)

	err := New(g, 2, t.TempDir()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), a.runs.Load())
}
