package cmd

import (
	"github.com/agentic-research/sleuth/internal/mcpserver"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tree queries as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTree()
		if err != nil {
			return err
		}
		s, err := mcpserver.New(t, Version, log)
		if err != nil {
			return err
		}
		return s.ServeStdio()
	},
}
