// Command liveview runs view scenarios and browses stored collection snapshots.
//
// Usage:
//
//	liveview run <scenario.yaml>          Execute one scenario and print its trace
//	liveview test <scenario-file-or-dir>  Run scenarios against golden traces
//	liveview import --db <db> --name <n>  Load records into a stored snapshot
//	liveview view --db <db> --name <n>    Show a sorted, filtered window of a snapshot
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/liveview/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
