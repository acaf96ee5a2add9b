// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Exposes insert, query, and list tools to LLM agents via stdio
package commands

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/harper/videorag/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs videorag as an MCP (Model Context Protocol) server, letting LLM
agents index videos and retrieve storyboard segments via stdio.

Logs go to stderr so stdout stays a clean protocol stream.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  videorag mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "videorag": {
  #       "command": "videorag",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rag, logger, err := openRAG(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rag.Close(); err != nil {
			logger.Warn("error closing stores", "err", err)
		}
	}()

	server, _ := mcp.NewServer(rag, versionInfo.Version)

	logger.Info("videorag MCP server starting on stdio", "working_dir", cfg.WorkingDir)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-cmd.Context().Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
