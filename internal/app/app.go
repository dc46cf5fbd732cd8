// Package app wires the application together: logger construction, manifest
// loading, graph building and mode dispatch.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/manifest"
	"github.com/vk/stagehand/internal/node"
)

// Config holds everything an App instance needs to run.
type Config struct {
	// ManifestPaths are files or directories containing pipeline manifests.
	ManifestPaths []string

	// WorkDir is the directory all declared paths resolve against and every
	// process runs in. Defaults to the current directory.
	WorkDir string

	// MaxThreads is the total scheduling budget. Defaults to the number of
	// CPUs.
	MaxThreads int

	DryRun          bool
	ListInputs      bool
	ListOutputs     bool
	ListExecutables bool

	// ExportGraphPath, when set, writes a DOT rendering of the graph there.
	ExportGraphPath string

	// StrictVersions makes executable version mismatches fatal.
	StrictVersions bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ManifestPaths) == 0 {
		return nil, errors.New("at least one manifest path is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if cfg.MaxThreads < 1 {
		cfg.MaxThreads = runtime.NumCPU()
	}
	return &cfg, nil
}

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	roots  []node.Node
}

// NewApp constructs the application: it builds an isolated logger, loads
// every manifest and translates them into the pipeline's node set. It does
// not touch the graph yet; construction-time validation happens in Run so
// list modes can tune it.
func NewApp(outW io.Writer, cfg *Config, loader manifest.Loader) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured.")

	model, err := loader.Load(ctx, cfg.ManifestPaths...)
	if err != nil {
		return nil, fmt.Errorf("loading manifests: %w", err)
	}
	logger.Debug("Manifests loaded.", "tasks", len(model.Tasks), "groups", len(model.Groups))

	roots, err := manifest.Build(ctx, model, cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		roots:  roots,
	}, nil
}

// Roots returns the translated node set. Primarily for tests.
func (a *App) Roots() []node.Node {
	return a.roots
}
