package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/mcptools"
)

func init() {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the memory tools over MCP on stdio",
		Long:  "Serve memory_store, memory_context, memory_search and friends to an MCP client. Calls act as the configured API key.",
		RunE:  runMCP,
	}

	RootCmd.AddCommand(cmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.caller(cmd.Context())
	if err != nil {
		return err
	}
	return server.ServeStdio(mcptools.NewServer(a.svc, c, Version))
}
