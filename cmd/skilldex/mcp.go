package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldex/pkg/logger"
	"github.com/jingkaihe/skilldex/pkg/mcp"
	"github.com/jingkaihe/skilldex/pkg/presenter"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the retrieval engine over the Model Context Protocol",
	Long: `Start an MCP stdio server exposing skill discovery to agent hosts:
find_skills ranks candidates, load_skill discloses an overview, and
read_reference discloses reference documents on demand. Tool calls without a
session id share one conversation session for the lifetime of the
connection.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		// stdout carries the protocol; logs must go elsewhere.
		logger.SetLogOutput(os.Stderr)

		eng, err := newEngine(ctx)
		if err != nil {
			presenter.Error(err, "failed to load corpus")
			os.Exit(1)
		}

		server := mcp.NewServer(eng)
		if err := server.ServeStdio(); err != nil {
			logger.G(ctx).WithError(err).Error("mcp server error")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
