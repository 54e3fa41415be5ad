package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tome/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can look up
rules with citations.

Tools:
  search        hybrid search with content type, book and version filters
  find_similar  passages similar to a reference text
  job_status    progress of an ingestion job

By default, the server communicates over stdio using JSON-RPC. Use --port
to serve streamable HTTP instead.

Examples:
  # Stdio mode (default)
  tome mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  tome mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "tome": {
        "command": "/path/to/tome",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().StringP("game-system", "s", defaultGameSystem, "game system used when a tool call omits one")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	gameSystem, err := cmd.Flags().GetString("game-system")
	if err != nil {
		return fmt.Errorf("getting game-system flag: %w", err)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Retrieval:         retrievalService,
		Ingestion:         ingestionService,
		DefaultGameSystem: gameSystem,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
