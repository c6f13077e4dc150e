package main

import (
	"fmt"
	"os"

	"github.com/openthread/otcommissioner/cmd/otcommissioner/commands"

	// Import prometheus metrics so its init-time registration, if any, runs.
	_ "github.com/openthread/otcommissioner/pkg/metrics/prometheus"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
