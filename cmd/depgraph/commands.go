package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ritzau/depgraph/pkg/analysis"
	"github.com/ritzau/depgraph/pkg/bazel"
	"github.com/ritzau/depgraph/pkg/builder"
	"github.com/ritzau/depgraph/pkg/config"
	"github.com/ritzau/depgraph/pkg/deps"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/pubsub"
	"github.com/ritzau/depgraph/pkg/state"
)

// appKey carries the loaded configuration through the command context
type appKey struct{}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "depgraph",
		Short: "Build, query and check a file-level dependency graph",
		Long: `depgraph reads compiler dependency files (.d) and extractor records
(.deps.jsonl), maintains a persistent file dependency graph and answers
dependency, cycle, path and rule queries over it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.JSONLogs {
				logging.SetJSONOutput(logging.ParseLevel(cfg.Verbosity))
			} else {
				logging.SetLevel(logging.ParseLevel(cfg.Verbosity))
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, cfg))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to the config file (default depgraph.toml when present)")
	pf.StringP("workspace", "w", ".", "Workspace root to scan for inputs")
	pf.String("state-dir", ".depgraph", "Directory holding the persisted graph and rules")
	pf.String("state-backend", "file", "State backend: file or badger")
	pf.StringP("verbosity", "v", "", "Log level: trace, debug, info, warn or error")
	pf.Bool("json-logs", false, "Log as JSON")
	pf.Int("workers", 0, "Parallel extractions (0 = one per input)")
	pf.Bool("bazel-modules", false, "Use owning Bazel targets as modules")

	root.AddCommand(
		newBuildCmd(),
		newForwardCmd(),
		newBackwardCmd(),
		newCyclesCmd(),
		newPathsCmd(),
		newClassifyCmd(),
		newRuleCmd(),
		newAnnotateCmd(),
		newServeCmd(),
	)
	return root
}

func configFrom(cmd *cobra.Command) *config.Config {
	return cmd.Context().Value(appKey{}).(*config.Config)
}

// openRunner creates a runner over the configured state. When the graph
// has never been built, or the saved state was unreadable, it is built
// before returning unless skipBuild is set.
func openRunner(cmd *cobra.Command, pub pubsub.Publisher, skipBuild bool) (*analysis.Runner, error) {
	cfg := configFrom(cmd)
	store, err := state.Open(cfg.State.Backend, cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	extractor, err := newExtractor(cmd.Context(), cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	runner, err := analysis.NewRunner(analysis.Options{
		Workspace:  cfg.Workspace,
		Workers:    cfg.Workers,
		CacheSize:  cfg.CacheSize,
		PathLimit:  cfg.PathLimit,
		Filter:     cfg.Filter,
		Thresholds: cfg.Thresholds(),
		Rules:      cfg.Rules,
		Extractor:  extractor,
		State:      store,
		Publisher:  pub,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := runner.Load(cmd.Context()); err != nil {
		_ = runner.Close()
		return nil, err
	}

	if runner.NeedsRebuild() && !skipBuild {
		logging.Info("No usable graph state, building", "workspace", cfg.Workspace)
		if _, err := runner.Run(cmd.Context(), analysis.BuildRequest{Reason: "initial build"}); err != nil {
			_ = runner.Close()
			return nil, err
		}
	}
	return runner, nil
}

// newExtractor returns the input extractor, resolving modules through
// Bazel when configured to
func newExtractor(ctx context.Context, cfg *config.Config) (builder.Extractor, error) {
	dfile := deps.DFileExtractor{Workspace: cfg.Workspace}
	if cfg.BazelModules {
		modules, err := bazel.LoadModules(ctx, bazel.NewExecutor(), cfg.Workspace)
		if err != nil {
			return nil, fmt.Errorf("resolve bazel modules: %w", err)
		}
		dfile.Modules = modules
	}
	return deps.Auto{DFile: dfile}, nil
}
