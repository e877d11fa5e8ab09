package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wilhg/toolspec/pkg/introspect"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "discover <module>",
		Short: "List the classes, methods and functions a module owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.source()
			if err != nil {
				return err
			}
			disc, err := introspect.NewWalker(src).Discover(cmd.Context(), args[0], a.cfg.IncludePrivate)
			if err != nil {
				return err
			}
			if format == "text" {
				printDiscovery(cmd.OutOrStdout(), disc)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), disc)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or text")
	return cmd
}

func printDiscovery(w io.Writer, d *introspect.Discovery) {
	header := d.Module.Name
	if d.Module.Version != "" {
		header += " " + d.Module.Version
	}
	fmt.Fprintf(w, "module %s\n", header)
	for _, c := range d.Classes {
		if len(c.Bases) > 0 {
			fmt.Fprintf(w, "class %s(%s)\n", c.Name, strings.Join(c.Bases, ", "))
		} else {
			fmt.Fprintf(w, "class %s\n", c.Name)
		}
		for _, m := range c.Methods {
			fmt.Fprintf(w, "  %s\n", introspect.SignatureString(m))
		}
	}
	for _, f := range d.Functions {
		fmt.Fprintf(w, "func %s\n", introspect.SignatureString(f))
	}
	fmt.Fprintf(w, "%d items\n", d.TotalItems())
}
