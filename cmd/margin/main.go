// Package main is the entry point for the margin CLI.
package main

import (
	"os"

	"github.com/tOgg1/margin/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(cli.Execute(version + " (" + commit + ", " + date + ")"))
}
