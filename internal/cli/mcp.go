package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intake/internal/mcpserver"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve one intake session as MCP tools over stdio",
	Long: `Mcp runs a Model Context Protocol server on stdin/stdout. Every
intake operation is a tool (set_name, set_age, assess, ...), all acting
on one session for the life of the process.

Example client configuration:
  {"command": "intake", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}

	server, err := mcpserver.NewServer(a.newSurface(), Version, a.logger)
	if err != nil {
		return fmt.Errorf("create mcp server: %w", err)
	}
	return server.Run(ctx)
}
