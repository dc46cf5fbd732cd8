// Package executor drives a validated graph to completion under a bounded
// resource budget.
//
// The unit of concurrency is a node; a node's own command stage may start
// several processes under that single scheduling slot. The executor never
// touches graph structures directly: every state change goes through the
// graph's SetNodeState API, which keeps the transitions linearizable without
// any external locking.
package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/graph"
	"github.com/vk/stagehand/internal/node"
)

// Executor is a bounded worker pool over a graph's runnable set.
type Executor struct {
	graph   *graph.Graph
	budget  int64
	sem     *semaphore.Weighted
	workDir string
}

// New creates an executor with the given total thread budget. The sum of
// in-flight nodes' thread costs never exceeds the budget.
func New(g *graph.Graph, maxThreads int, workDir string) *Executor {
	if maxThreads < 1 {
		maxThreads = 1
	}
	return &Executor{
		graph:   g,
		budget:  int64(maxThreads),
		sem:     semaphore.NewWeighted(int64(maxThreads)),
		workDir: workDir,
	}
}

// completion carries the outcome of one dispatched node back to the loop.
type completion struct {
	id     graph.NodeID
	weight int64
	err    error
}

// Run schedules runnable nodes until nothing further can start and nothing
// is in flight. A failed node is terminal: its dependents are excluded
// purely through state derivation, while independent branches run to
// completion. The returned error names every node whose execution failed.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	completions := make(chan completion)
	inFlight := 0
	var failed []string

	for {
		if ctx.Err() == nil {
			for _, id := range e.graph.Runnable() {
				n := e.graph.Node(id)
				weight := int64(n.Threads())
				if weight < 1 {
					weight = 1
				}
				if weight > e.budget {
					// Oversized nodes still run, claiming the whole budget.
					weight = e.budget
				}
				if !e.sem.TryAcquire(weight) {
					continue
				}
				// Claim strictly before dispatch: once a node is Running it
				// can never show up in another scan's runnable set.
				if err := e.graph.SetNodeState(id, graph.Running); err != nil {
					e.sem.Release(weight)
					return err
				}
				logger.Info("Starting node.", "node", e.graph.Name(id), "threads", n.Threads())
				inFlight++
				go e.dispatch(ctx, completions, id, n, weight)
			}
		}

		if inFlight == 0 {
			break
		}

		c := <-completions
		e.sem.Release(c.weight)
		inFlight--
		if c.err != nil {
			logger.Error("Node failed.", "node", e.graph.Name(c.id), "error", c.err)
			failed = append(failed, e.graph.Name(c.id))
			if err := e.graph.SetNodeState(c.id, graph.Error); err != nil {
				return err
			}
			continue
		}
		logger.Info("Node finished.", "node", e.graph.Name(c.id))
		if err := e.graph.SetNodeState(c.id, graph.Done); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("execution failed for %s", strings.Join(failed, ", "))
	}
	return ctx.Err()
}

// dispatch runs one claimed node and reports its outcome.
func (e *Executor) dispatch(ctx context.Context, completions chan<- completion, id graph.NodeID, n node.Node, weight int64) {
	err := n.Run(ctx, e.workDir)
	completions <- completion{id: id, weight: weight, err: err}
}
