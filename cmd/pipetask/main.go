// Command pipetask inspects and runs the tasks of a data-processing
// pipeline: it renders task names, resolves dependencies and file paths,
// assembles command-line options and executes task DAGs with persistent
// state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCommand(a)
	err := root.ExecuteContext(ctx)

	if ctx.Err() != nil {
		// Restore default signal handling so a second Ctrl+C force-exits.
		stop()
		if a.pm != nil {
			if killErr := a.pm.KillAll(); killErr != nil {
				fmt.Fprintf(os.Stderr, "Error killing subprocesses: %v\n", killErr)
			}
		}
	}
	a.close()

	if err != nil {
		os.Exit(exitCode(err))
	}
}
