package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vk/stagehand/internal/app"
	"github.com/vk/stagehand/internal/cli"
	"github.com/vk/stagehand/internal/manifest"
)

// main is the entrypoint for the stagehand binary.
func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	stagehandApp, err := app.NewApp(outW, appConfig, manifest.NewLoader())
	if err != nil {
		return err
	}

	return stagehandApp.Run(context.Background())
}
