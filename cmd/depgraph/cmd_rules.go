package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ritzau/depgraph/pkg/output"
)

func newClassifyCmd() *cobra.Command {
	var (
		asJSON bool
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Check every dependency against the rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner(cmd, nil, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			c := runner.Rules().Classify()
			if asJSON {
				if err := printJSON(cmd, c.Illegal()); err != nil {
					return err
				}
			} else {
				output.PrintClassification(cmd.OutOrStdout(), c)
			}
			if strict && c.Count() > 0 {
				return fmt.Errorf("%d illegal dependencies", c.Count())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when any dependency is illegal")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage dependency rules",
	}

	var deny bool
	add := &cobra.Command{
		Use:   "add <source> <target>",
		Short: "Add a rule for an existing direct dependency",
		Long: `add appends a rule. Patterns are path globs ("src/a/*", "**/*_test.cc"),
path prefixes ("src/a") or module globs ("module:core*"). The rule is only
accepted when some file matching source depends directly on a file
matching target.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner(cmd, nil, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			added, err := runner.AddRule(cmd.Context(), args[0], args[1], deny)
			if err != nil {
				return err
			}
			if !added {
				return fmt.Errorf("no dependency from %s to %s", args[0], args[1])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added rule %d\n", len(runner.Rules().Specs()))
			return nil
		},
	}
	add.Flags().BoolVar(&deny, "deny", false, "Forbid the dependency instead of allowing it")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner(cmd, nil, true)
			if err != nil {
				return err
			}
			defer runner.Close()

			for i, r := range runner.Rules().Rules() {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", i+1, r.Descriptor())
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
