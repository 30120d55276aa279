package main

import (
	"github.com/spf13/cobra"

	"github.com/damgoweb/tokaido-orai/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	GroupID: "serve",
	Short:   "Serve sync data lookups to MCP clients over stdio",
	Long: `Run an MCP server on stdin/stdout exposing the tools active_segment,
segment_time, list_sync_points and export_document. Logs go to the log
file so stdout stays reserved for the protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()

		cat, err := e.loadCatalog()
		if err != nil {
			return err
		}

		e.logger.Printf("mcp server starting (version %s)", mcpserver.Version)
		return mcpserver.New(e.store, cat).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
