package main

import (
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ritzau/depgraph/pkg/analysis"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/pubsub"
	"github.com/ritzau/depgraph/pkg/watcher"
	"github.com/ritzau/depgraph/pkg/web"
)

const (
	watchQuietPeriod = 500 * time.Millisecond
	watchMaxWait     = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, optionally rebuilding as inputs change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			ctx := cmd.Context()

			pub := pubsub.NewSSEPublisher()
			defer pub.Close()

			runner, err := openRunner(cmd, pub, true)
			if err != nil {
				return err
			}
			defer runner.Close()

			g, ctx := errgroup.WithContext(ctx)

			// Serve the restored graph at once and build in the background
			if runner.NeedsRebuild() {
				h := runner.Submit(ctx, analysis.BuildRequest{Reason: "initial build"})
				g.Go(func() error {
					if _, err := h.Wait(); err != nil {
						logging.Error("Initial build failed", "error", err)
					}
					return nil
				})
			}

			server := web.NewServer(runner)
			g.Go(func() error {
				return server.Start(ctx, cfg.Port)
			})

			if cfg.Watch {
				fw, err := watcher.NewFileWatcher(cfg.Workspace)
				if err != nil {
					return err
				}
				if err := fw.Start(ctx); err != nil {
					return err
				}
				debouncer := watcher.NewDebouncer(fw.Events(), watchQuietPeriod, watchMaxWait)
				debouncer.Start(ctx)
				g.Go(func() error {
					watcher.Drive(ctx, debouncer.Output(), runner)
					return nil
				})
			}

			return g.Wait()
		},
	}
	f := cmd.Flags()
	f.IntP("port", "p", 8080, "HTTP port")
	f.Bool("watch", false, "Rebuild when inputs change")
	return cmd
}
