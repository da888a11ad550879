package main

import (
	"github.com/spf13/cobra"

	"github.com/ritzau/depgraph/pkg/analysis"
	"github.com/ritzau/depgraph/pkg/builder"
	"github.com/ritzau/depgraph/pkg/output"
)

func newBuildCmd() *cobra.Command {
	var add bool
	cmd := &cobra.Command{
		Use:   "build [input...]",
		Short: "Rebuild the graph from the workspace inputs or the given inputs",
		Long: `build runs the extractors and commits the result as a new graph
generation. A full build replaces the graph; with --add the visited files are
upserted and every other node is kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner(cmd, nil, true)
			if err != nil {
				return err
			}
			defer runner.Close()

			req := analysis.BuildRequest{Mode: builder.ModeFull, Reason: "command line"}
			if add {
				req.Mode = builder.ModeAdd
			}
			if len(args) > 0 {
				req.Inputs = args
			}
			report, err := runner.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			output.PrintBuildReport(cmd.OutOrStdout(), report, runner.Summary())
			return nil
		},
	}
	cmd.Flags().BoolVar(&add, "add", false, "Upsert the visited files instead of replacing the graph")
	return cmd
}
