// Package main provides the entry point for the paytoken CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/paytoken/internal/cli"
)

// Set via -ldflags at release build time.
//
//nolint:gochecknoglobals // Build-time injected values
var (
	version string
	commit  string
	date    string
)

func main() {
	ctx := context.Background()
	err := cli.Execute(ctx, cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err != nil {
		cli.PrintError(os.Stderr, err)
	}
	os.Exit(cli.ExitCodeForError(err))
}
