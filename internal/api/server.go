package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"

	"github.com/harper/videorag/internal/core"
	"github.com/harper/videorag/internal/models"
)

// Service is the subset of core.VideoRAG the HTTP API needs
type Service interface {
	Insert(ctx context.Context, paths []string) (*core.InsertReport, error)
	Query(ctx context.Context, text string) (*models.RetrievalResult, error)
	Corpora() []core.CorpusSummary
}

// InsertRequest is the body of POST /api/v1/videos
type InsertRequest struct {
	Paths []string `json:"paths"`
}

// QueryRequest is the body of POST /api/v1/query
type QueryRequest struct {
	Text string `json:"text"`
}

// Server implements the HTTP API server for videorag
type Server struct {
	service Service
	router  *chi.Mux
	addr    string
	logger  *log.Logger
	// mediaRoot, when set, is the only tree POST /api/v1/videos may read from
	mediaRoot string
}

// NewServer creates a new HTTP API server
func NewServer(service Service, addr string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		service: service,
		addr:    addr,
		logger:  logger.WithPrefix("api"),
	}
	s.setupRouter()
	return s
}

// setupRouter configures all HTTP routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	// Indexing can run for many minutes, so only queries get a timeout
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/videos", s.handleInsert)
		r.With(middleware.Timeout(120*time.Second)).Post("/query", s.handleQuery)
		r.Get("/corpora", s.handleCorpora)
	})

	s.router = r
}

// RestrictMedia limits insert requests to files under root
func (s *Server) RestrictMedia(root string) error {
	abs, err := resolvePath(root)
	if err != nil {
		return fmt.Errorf("invalid media root %s: %w", root, err)
	}
	s.mediaRoot = abs
	s.logger.Info("inserts restricted to media root", "root", abs)
	return nil
}

// allowed reports whether path resolves inside the media root
func (s *Server) allowed(path string) bool {
	if s.mediaRoot == "" {
		return true
	}
	abs, err := resolvePath(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.mediaRoot, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolvePath makes path absolute and follows symlinks in whatever part of it exists
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs)), nil
	}
	return abs, nil
}

// Handler returns the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddMCPServer mounts the MCP SSE transport under /mcp
func (s *Server) AddMCPServer(mcpServer *server.MCPServer) {
	sse := server.NewSSEServer(
		mcpServer,
		server.WithBasePath("/mcp"),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(15*time.Second),
	)
	s.router.Mount("/mcp", sse)
	s.logger.Info("MCP SSE endpoint available", "path", "/mcp/sse")
}

// Serve starts the HTTP server and shuts it down when ctx ends
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	successResponse(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req InsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Paths) == 0 {
		errorResponse(w, http.StatusBadRequest, "paths is required")
		return
	}
	for _, p := range req.Paths {
		if !s.allowed(p) {
			errorResponse(w, http.StatusForbidden, fmt.Sprintf("path %s is outside the media root", p))
			return
		}
	}

	report, err := s.service.Insert(r.Context(), req.Paths)
	if err != nil {
		s.logger.Error("insert failed", "err", err)
		writeJSON(w, statusFor(err), map[string]interface{}{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	successResponse(w, report)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		errorResponse(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.service.Query(r.Context(), req.Text)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, fmt.Sprintf("retrieval failed: %v", err))
		return
	}
	successResponse(w, result)
}

func (s *Server) handleCorpora(w http.ResponseWriter, r *http.Request) {
	corpora := s.service.Corpora()
	successResponse(w, map[string]interface{}{
		"corpora": corpora,
		"count":   len(corpora),
	})
}

// statusFor maps indexing failures to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNoEnricher):
		return http.StatusServiceUnavailable
	case models.IsKind(err, models.KindDecode):
		return http.StatusUnprocessableEntity
	case models.IsKind(err, models.KindCollaborator):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse writes a JSON error response
func errorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// successResponse writes a JSON success response
func successResponse(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
