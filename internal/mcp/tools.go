// ABOUTME: MCP tool definitions and registration for the videorag server
// ABOUTME: Defines JSON schemas for insert_videos, query_storyboard, and list_corpora
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with every videorag tool registered
func NewServer(service Service, version string) (*mcpserver.MCPServer, *Handlers) {
	server := mcpserver.NewMCPServer(
		"videorag",
		version,
		mcpserver.WithToolCapabilities(true),
	)
	return server, RegisterTools(server, service)
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, service Service) *Handlers {
	handlers := &Handlers{service: service}

	// 1. insert_videos - Segment, enrich, and index video files
	server.AddTool(mcp.Tool{
		Name:        "insert_videos",
		Description: "Index video files for storyboard retrieval. Each file becomes a corpus named after its base name; already indexed corpora are skipped.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Paths of the video files to index",
				},
			},
			Required: []string{"paths"},
		},
	}, handlers.InsertVideos)

	// 2. query_storyboard - Retrieve one segment per scene sentence
	server.AddTool(mcp.Tool{
		Name:        "query_storyboard",
		Description: "Retrieve one unused video segment per scene sentence. Separate sentences with a line containing /////.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Storyboard text, each scene introduced by /////",
				},
			},
			Required: []string{"text"},
		},
	}, handlers.QueryStoryboard)

	// 3. list_corpora - List indexed videos
	server.AddTool(mcp.Tool{
		Name:        "list_corpora",
		Description: "List indexed video corpora with segment counts and durations.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListCorpora)

	return handlers
}
