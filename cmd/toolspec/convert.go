package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newConvertCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "convert <module>",
		Short: "Classify a module's methods into tools and resources",
		Long: `convert discovers the module, groups its methods by declaring class and
classifies each group. Groups the backend cannot classify fall back to one
tool per method. The JSON report is written to stdout or --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, closeFn, err := a.converter(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			rep, err := conv.Convert(cmd.Context(), a.cfg.Convert(args[0]))
			if err != nil {
				return err
			}
			if output == "" {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := writeJSON(f, rep); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to this file")
	return cmd
}
