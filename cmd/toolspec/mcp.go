package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/wilhg/toolspec/pkg/mcpserver"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve discover_library, convert_library and analyze_library over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conv, closeFn, err := a.converter(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			srv := mcpserver.New(conv, a.cfg.Convert(""), mcpserver.WithVersion(version))
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
