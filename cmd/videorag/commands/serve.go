// ABOUTME: Serve command starts the HTTP API
// ABOUTME: Mounts the REST routes and, optionally, the MCP SSE transport
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/videorag/internal/api"
	"github.com/harper/videorag/internal/mcp"
)

var (
	serveAddr      string
	serveMCP       bool
	serveMediaRoot string
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Routes:
  GET  /health
  POST /api/v1/videos    {"paths": ["movie.mp4"]}
  POST /api/v1/query     {"text": "/////\nA man walks in.\n"}
  GET  /api/v1/corpora
  GET  /mcp/sse          MCP over server-sent events (unless --mcp=false)

The API has no authentication. POST /api/v1/videos reads any file the
server can open unless --media-root (or VIDEORAG_MEDIA_ROOT) limits it
to one directory tree. Bind to a private address when exposing it.

Examples:
  videorag serve
  videorag serve --addr 127.0.0.1:9000 --mcp=false
  videorag serve --media-root /srv/videos`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
	cmd.Flags().BoolVar(&serveMCP, "mcp", true, "Also serve MCP over SSE at /mcp")
	cmd.Flags().StringVar(&serveMediaRoot, "media-root", "", "Only index files under this directory (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
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

	srv := api.NewServer(rag, serveAddr, logger)
	mediaRoot := cfg.MediaRoot
	if serveMediaRoot != "" {
		mediaRoot = serveMediaRoot
	}
	if mediaRoot != "" {
		if err := srv.RestrictMedia(mediaRoot); err != nil {
			return err
		}
	} else {
		logger.Warn("no media root set; the insert endpoint accepts any server-side path")
	}
	if serveMCP {
		mcpServer, _ := mcp.NewServer(rag, versionInfo.Version)
		srv.AddMCPServer(mcpServer)
	}

	if err := srv.Serve(cmd.Context()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
