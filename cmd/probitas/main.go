// Command probitas runs the Scenarios found in the given scenario files
// against a pool of probitas-worker subprocesses and reports a
// pass/fail/skip summary.
package main

import (
	"fmt"
	"os"

	"github.com/probitas/probitas/pkg/aggregator"
)

var exitCode = aggregator.ExitUsage

func main() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "probitas:", err)
		os.Exit(aggregator.ExitUsage)
	}
	os.Exit(exitCode)
}
