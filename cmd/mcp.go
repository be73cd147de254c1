package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillbase/internal/logger"
	"github.com/kamusis/skillbase/internal/mcpserver"
)

var flagMCPWatch bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the knowledge base as an MCP server over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the tools
route_topic, get_document, list_documents and search_documents.

Logs go to stderr; stdout carries only protocol messages. Register it with an
MCP client as:

  {"command": "skillbase", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, holder, err := openHolder(ctx, flagMCPWatch)
		if err != nil {
			return err
		}
		defer holder.Current().Close()

		s := mcpserver.New(holder, version)
		logger.G(ctx).WithField("documents", holder.Current().Store.Len()).Info("mcp server listening on stdio")
		return runWithWatcher(ctx, cfg, holder, flagMCPWatch, func(ctx context.Context) error {
			return mcpserver.Serve(ctx, s, os.Stdin, os.Stdout)
		})
	},
}

func init() {
	mcpCmd.Flags().BoolVarP(&flagMCPWatch, "watch", "w", false, "Rebuild when files under the corpus roots change")
	rootCmd.AddCommand(mcpCmd)
}
