package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/eval"
	"github.com/wilhg/toolspec/pkg/prompt"
)

func newPromptsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect, diff and evaluate the classification prompts",
		Long: `Built-in prompts are version 1. Every <name>.tmpl file in --prompts-dir is
saved as the next version of <name>, and the latest version is used.`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List prompt names and versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ps, err := a.prompts()
			if err != nil {
				return err
			}
			t := newTable()
			t.AppendHeader(table.Row{"Name", "Version", "Source"})
			for _, name := range ps.Names() {
				for _, p := range ps.List(name) {
					t.AppendRow(table.Row{p.Name, fmt.Sprintf("v%d", p.Version), p.Meta["source"]})
				}
			}
			return renderTable(cmd.OutOrStdout(), t)
		},
	}

	var showVersion int
	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a prompt body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := a.prompts()
			if err != nil {
				return err
			}
			p, ok := ps.Get(args[0], showVersion)
			if !ok {
				return errmodel.Validation("prompt", fmt.Sprintf("%v: %s v%d", prompt.ErrNotFound, args[0], showVersion), nil)
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Body)
			return nil
		},
	}
	show.Flags().IntVar(&showVersion, "version", 0, "version to show (0 for latest)")

	diff := &cobra.Command{
		Use:   "diff <name> <v1> <v2>",
		Short: "Show a unified diff between two prompt versions",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := a.prompts()
			if err != nil {
				return err
			}
			v1, err1 := strconv.Atoi(args[1])
			v2, err2 := strconv.Atoi(args[2])
			if err1 != nil || err2 != nil {
				return errmodel.Validation("version", "versions must be integers", nil)
			}
			if _, ok := ps.Get(args[0], v1); !ok {
				return errmodel.Validation("prompt", fmt.Sprintf("%s v%d does not exist", args[0], v1), nil)
			}
			if _, ok := ps.Get(args[0], v2); !ok {
				return errmodel.Validation("prompt", fmt.Sprintf("%s v%d does not exist", args[0], v2), nil)
			}
			fmt.Fprint(cmd.OutOrStdout(), ps.Diff(args[0], v1, v2))
			return nil
		},
	}

	evalCmd := &cobra.Command{
		Use:   "eval <fixtures-dir>",
		Short: "Render prompt fixtures and check their expectations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := a.prompts()
			if err != nil {
				return err
			}
			model := a.cfg.Model
			if model == "" {
				model = "gpt-4o"
			}
			sum, err := eval.EvaluatePromptFixtures(os.DirFS(args[0]), ".", ps, prompt.LazyEstimator(model))
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), sum); err != nil {
				return err
			}
			if sum.Passed < sum.Total {
				return errmodel.Validation("fixtures", fmt.Sprintf("%d of %d fixtures failed", sum.Total-sum.Passed, sum.Total), nil)
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, diff, evalCmd)
	return cmd
}
