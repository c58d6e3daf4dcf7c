// Command reconcile evaluates constructions against focus objects.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/reconcile/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Subcommands print their own formatted errors; usage errors and
		// flag errors come back here unprinted.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
