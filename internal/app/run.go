package app

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/executor"
	"github.com/vk/stagehand/internal/graph"
)

// Run builds and validates the dependency graph, then dispatches on the
// configured mode: list, export, dry run or execution.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run started.")

	listOnly := a.config.ListInputs || a.config.ListOutputs || a.config.ListExecutables

	g, err := graph.New(ctx, a.roots, graph.Options{
		// The executable check launches version probes; list modes must
		// stay read-only.
		CheckExecutables: !listOnly,
		StrictVersions:   a.config.StrictVersions,
	})
	if err != nil {
		return fmt.Errorf("building dependency graph: %w", err)
	}
	a.logger.Info("Dependency graph built.", "nodes", g.Len())

	if a.config.ExportGraphPath != "" {
		if err := a.exportGraph(g); err != nil {
			return err
		}
	}

	if listOnly {
		return a.runListModes(g)
	}

	if a.config.DryRun {
		return a.runDry(g)
	}

	a.logger.Info("Starting execution.", "max_threads", a.config.MaxThreads)
	exec := executor.New(g, a.config.MaxThreads, a.config.WorkDir)
	runErr := exec.Run(ctx)

	a.logSummary(g)
	if runErr != nil {
		return fmt.Errorf("execution failed: %w", runErr)
	}
	a.logger.Info("Execution finished.")
	return nil
}

// runListModes prints the requested enumerations without executing anything.
func (a *App) runListModes(g *graph.Graph) error {
	print := func(lines []string) {
		for _, line := range lines {
			fmt.Fprintln(a.outW, line)
		}
	}
	if a.config.ListInputs {
		print(g.InputFiles())
	}
	if a.config.ListOutputs {
		print(g.OutputFiles())
	}
	if a.config.ListExecutables {
		print(g.Executables())
	}
	return nil
}

// runDry logs the state census and describes every runnable node.
func (a *App) runDry(g *graph.Graph) error {
	a.logSummary(g)
	for _, id := range g.Runnable() {
		fmt.Fprintln(a.outW, g.Describe(id))
	}
	a.logger.Info("Dry run complete; nothing was executed.")
	return nil
}

// exportGraph writes the DOT rendering of the graph.
func (a *App) exportGraph(g *graph.Graph) error {
	f, err := os.Create(a.config.ExportGraphPath)
	if err != nil {
		return fmt.Errorf("creating graph export file: %w", err)
	}
	defer f.Close()

	if err := g.WriteDOT(f); err != nil {
		return fmt.Errorf("exporting graph: %w", err)
	}
	a.logger.Info("Graph exported.", "path", a.config.ExportGraphPath)
	return nil
}

// logSummary logs the per-state node census and names any failed nodes.
func (a *App) logSummary(g *graph.Graph) {
	census := g.Census()
	attrs := make([]any, 0, 12)
	for state := graph.Done; state <= graph.Error; state++ {
		if census[state] > 0 {
			attrs = append(attrs, state.String(), census[state])
		}
	}
	a.logger.Info("Node states.", attrs...)

	var failed []string
	for id, state := range g.States() {
		if state == graph.Error {
			failed = append(failed, g.Name(graph.NodeID(id)))
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		a.logger.Error("Nodes failed.", "count", len(failed), "nodes", failed)
	}
}
