package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wilhg/toolspec/pkg/convert"
	"github.com/wilhg/toolspec/pkg/eval"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect conversion runs recorded in the run store",
	}

	var module string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.requireStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			runs, err := st.ListRuns(cmd.Context(), module, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			t := newTable()
			t.AppendHeader(table.Row{"ID", "Module", "Source", "Provider", "Created", "Tools", "Resources", "Fallback"})
			for _, r := range runs {
				t.AppendRow(table.Row{r.ID, r.Module, r.Source, r.Provider,
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.Tools, r.Resources, r.FallbackGroups})
			}
			return renderTable(cmd.OutOrStdout(), t)
		},
	}
	list.Flags().StringVar(&module, "module", "", "only runs for this module")
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of runs (0 for all)")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the stored report of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.requireStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			rec, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rep, err := convert.DecodeReport(rec.Report)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}

	diff := &cobra.Command{
		Use:   "diff <run-id> <run-id>",
		Short: "Compare the tools and resources of two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.requireStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			var reports [2]*convert.Report
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, id := range args {
				g.Go(func() error {
					rec, err := st.GetRun(ctx, id)
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					reports[i], err = convert.DecodeReport(rec.Report)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), eval.Compare(reports[0].Result, reports[1].Result))
		},
	}

	cmd.AddCommand(list, show, diff)
	return cmd
}
