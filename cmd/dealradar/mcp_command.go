package main

import (
	"github.com/spf13/cobra"

	"dealradar/internal/logging"
	"dealradar/internal/mcpserver"
)

func newMCPCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve dealradar tools over the Model Context Protocol (stdio)",
		Long: "Starts an MCP server on stdin/stdout. Tool calls are forwarded to the " +
			"running daemon, so start `dealradar serve` first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs go to stderr.
			logger, err := logging.New(logging.Options{Level: "warn", Format: "json", OutputPaths: []string{"stderr"}})
			if err != nil {
				return err
			}
			return mcpserver.New(client, mcpserver.WithLogger(logger)).Run(cmd.Context())
		},
	}
}
