package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/pkg/retrieval"
	"github.com/papercomputeco/folio/pkg/vector"
)

// Retriever is the retrieval surface the API serves.
type Retriever interface {
	IndexDocument(ctx context.Context, path string, opts ...retrieval.IndexOption) (*retrieval.IndexResult, error)
	Search(ctx context.Context, text string, k int) ([]vector.QueryResult, error)
	Query(ctx context.Context, text string, k int) (string, error)
	Status() retrieval.Status
}

// Server is the API server for indexing and querying a document.
type Server struct {
	config    Config
	retriever Retriever
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates a new API server around an already constructed retriever.
func NewServer(config Config, retriever Retriever, logger *slog.Logger) (*Server, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if config.UploadDir == "" {
		return nil, errors.New("upload directory is required")
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = DefaultMaxUploadSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.MaxUploadSize,
	})

	s := &Server{
		config:    config,
		retriever: retriever,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/status", s.handleStatus)
	app.Post("/v1/documents", s.handleUpload)
	app.Get("/v1/search", s.handleSearch)
	app.Get("/v1/query", s.handleQuery)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
