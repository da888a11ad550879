package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ritzau/depgraph/pkg/analysis"
	"github.com/ritzau/depgraph/pkg/output"
)

func addBorderFlag(cmd *cobra.Command) {
	cmd.Flags().IntP("border", "b", 0, "Extra hops to follow (-1 = unbounded)")
}

func addJSONFlag(cmd *cobra.Command, v *bool) {
	cmd.Flags().BoolVar(v, "json", false, "Print JSON instead of a report")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newForwardCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "forward <path>",
		Short: "List the files a file depends on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner(cmd, nil, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			deps := runner.Query().ForwardDeps(args[0], configFrom(cmd).Border)
			if asJSON {
				return printJSON(cmd, deps)
			}
			output.PrintDeps(cmd.OutOrStdout(), "Dependencies", args[0], deps)
			return nil
		},
	}
	addBorderFlag(cmd)
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newBackwardCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "backward <path>",
		Short: "List the files that depend on a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner(cmd, nil, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			deps := runner.Query().BackwardDeps(args[0], configFrom(cmd).Border)
			if asJSON {
				return printJSON(cmd, deps)
			}
			output.PrintDeps(cmd.OutOrStdout(), "Dependents", args[0], deps)
			return nil
		},
	}
	addBorderFlag(cmd)
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newCyclesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "cycles [path]",
		Short: "List dependency cycles, or the cycle containing a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner(cmd, nil, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			if len(args) == 1 {
				deps := runner.Query().CycleDeps(args[0])
				if asJSON {
					return printJSON(cmd, deps)
				}
				output.PrintDeps(cmd.OutOrStdout(), "Cycle members", args[0], deps)
				return nil
			}
			list := runner.Cycles()
			if asJSON {
				return printJSON(cmd, list)
			}
			output.PrintCycles(cmd.OutOrStdout(), list)
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newPathsCmd() *cobra.Command {
	var (
		from, to []string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "paths --from <path> --to <path>",
		Short: "Find dependency paths between two sets of files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(from) == 0 || len(to) == 0 {
				return fmt.Errorf("--from and --to are required")
			}
			runner, err := openRunner(cmd, nil, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			result := runner.Query().FindPaths(from, to, configFrom(cmd).Border)
			if asJSON {
				return printJSON(cmd, result)
			}
			output.PrintPaths(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&from, "from", nil, "Start files")
	cmd.Flags().StringSliceVar(&to, "to", nil, "End files")
	addBorderFlag(cmd)
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newAnnotateCmd() *cobra.Command {
	var (
		roots    []string
		dirs     bool
		blockers bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Classify files by how hard they are to move",
		Long: `annotate reports for every file whether it is in a cycle, its depth
from the roots and its color: green files have no blocking dependencies,
yellow files exactly one, red files more, and gray files are external.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner(cmd, nil, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			annotations := runner.Annotations(roots)
			w := cmd.OutOrStdout()
			switch {
			case dirs:
				rollup := analysis.RollupDirs(runner.Store().Snapshot(), annotations)
				if asJSON {
					return printJSON(cmd, rollup)
				}
				output.PrintRollup(w, rollup)
			case blockers:
				list := runner.Blockers(roots)
				if asJSON {
					return printJSON(cmd, list)
				}
				output.PrintBlockers(w, list)
			case asJSON:
				return printJSON(cmd, annotations)
			default:
				output.PrintAnnotations(w, annotations)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&roots, "root", nil, "Depth roots (default: files nothing depends on)")
	f.BoolVar(&dirs, "dirs", false, "Sum sizes per directory by color")
	f.BoolVar(&blockers, "blockers", false, "Rank the files blocking yellow files")
	f.Int("max-depth", 0, "Color files deeper than this red (0 = off)")
	f.Uint64("max-size", 0, "Color files larger than this red (0 = off)")
	f.StringSlice("green-modules", nil, "Only files in these modules may be green or yellow")
	f.StringSlice("red-classifiers", nil, "Classifiers that are always red")
	addJSONFlag(cmd, &asJSON)
	return cmd
}
