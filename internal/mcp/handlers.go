// ABOUTME: MCP tool handler implementations for the videorag server
// ABOUTME: Translates tool calls into Insert, Query, and Corpora on the service
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harper/videorag/internal/core"
	"github.com/harper/videorag/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// Service is the subset of core.VideoRAG the tools need
type Service interface {
	Insert(ctx context.Context, paths []string) (*core.InsertReport, error)
	Query(ctx context.Context, text string) (*models.RetrievalResult, error)
	Corpora() []core.CorpusSummary
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	service Service
}

func parseParams(args interface{}, target interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

// InsertVideos handles the insert_videos tool
func (h *Handlers) InsertVideos(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		Paths []string `json:"paths"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	var paths []string
	for _, p := range params.Paths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return mcp.NewToolResultError("paths argument is required and must list at least one file"), nil
	}

	report, err := h.service.Insert(ctx, paths)
	if err != nil {
		msg := fmt.Sprintf("indexing failed: %v", err)
		if report != nil && len(report.Indexed) > 0 {
			msg += fmt.Sprintf(" (indexed before failure: %s)", strings.Join(report.Indexed, ", "))
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(report)
}

// QueryStoryboard handles the query_storyboard tool
func (h *Handlers) QueryStoryboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}

	result, err := h.service.Query(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}
	return jsonResult(result)
}

// ListCorpora handles the list_corpora tool
func (h *Handlers) ListCorpora(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	corpora := h.service.Corpora()
	return jsonResult(map[string]interface{}{
		"corpora": corpora,
		"count":   len(corpora),
	})
}
