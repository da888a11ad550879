// Command depgraph builds and queries a file dependency graph.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ritzau/depgraph/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}
