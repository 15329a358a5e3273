// Command rdfsolve is a thin CLI wrapper over the mining engine: it
// parses flags/config, builds a logger and an optional metrics
// listener, and calls straight into the batch orchestrator. None of its
// own logic belongs to the mining engine itself.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
