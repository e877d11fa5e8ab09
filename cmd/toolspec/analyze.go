package main

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <module>",
		Short: "Categorize methods, suggest tool groupings and describe parameters",
		Long: `analyze runs the auxiliary helpers over each class group: a functional
categorization and a tool grouping suggestion per group, and a tool
description and parameter descriptions per method. Every helper falls back
on its own when the backend is unavailable or its reply is unusable; the
tier of each result is reported alongside it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, closeFn, err := a.converter(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := conv.Analyze(cmd.Context(), a.cfg.Convert(args[0]))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}
