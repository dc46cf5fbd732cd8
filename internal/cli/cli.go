// Package cli translates command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/stagehand/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("stagehand", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
stagehand - orchestrates command-line pipelines as a dependency graph.

Usage:
  stagehand [options] MANIFEST_PATH...

Arguments:
  MANIFEST_PATH
    One or more .hcl/.yaml manifest files, or directories containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	workDirFlag := flagSet.String("workdir", ".", "Working directory paths resolve against and processes run in.")
	maxThreadsFlag := flagSet.Int("max-threads", 0, "Total thread budget for concurrent nodes. 0 means the number of CPUs.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Build and validate the graph, describe runnable nodes, execute nothing.")
	listInputsFlag := flagSet.Bool("list-input-files", false, "Print external input files and exit.")
	listOutputsFlag := flagSet.Bool("list-output-files", false, "Print declared output files and exit.")
	listExecutablesFlag := flagSet.Bool("list-executables", false, "Print required executables and exit.")
	exportGraphFlag := flagSet.String("export-graph", "", "Write a DOT rendering of the dependency graph to this path.")
	noStrictVersionsFlag := flagSet.Bool("no-strict-versions", false, "Downgrade executable version mismatches to warnings.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		ManifestPaths:   flagSet.Args(),
		WorkDir:         *workDirFlag,
		MaxThreads:      *maxThreadsFlag,
		DryRun:          *dryRunFlag,
		ListInputs:      *listInputsFlag,
		ListOutputs:     *listOutputsFlag,
		ListExecutables: *listExecutablesFlag,
		ExportGraphPath: *exportGraphFlag,
		StrictVersions:  !*noStrictVersionsFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
