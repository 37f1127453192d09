package api

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/extract"
	extractutils "github.com/papercomputeco/folio/pkg/extract/utils"
	"github.com/papercomputeco/folio/pkg/retrieval"
	"github.com/papercomputeco/folio/pkg/vector"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SearchResponse is returned by GET /v1/search.
type SearchResponse struct {
	Query   string               `json:"query"`
	Results []vector.QueryResult `json:"results"`
	Count   int                  `json:"count"`
}

// UploadResponse is returned by POST /v1/documents.
type UploadResponse struct {
	Path   string                 `json:"path"`
	Result *retrieval.IndexResult `json:"result"`
	Status retrieval.Status       `json:"status"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.retriever.Status())
}

// handleUpload persists the multipart "file" field to the upload directory
// and indexes it, replacing the current document.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "multipart field \"file\" is required"})
	}

	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "file name is required"})
	}
	if !supported(name) {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(ErrorResponse{
			Error: "unsupported document type, expected one of " + strings.Join(extractutils.SupportedExtensions, ", "),
		})
	}

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		s.logger.Error("creating upload directory", "dir", s.config.UploadDir, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to store upload"})
	}

	path := filepath.Join(s.config.UploadDir, name)
	if err := c.SaveFile(file, path); err != nil {
		s.logger.Error("saving upload", "path", path, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to store upload"})
	}

	result, err := s.retriever.IndexDocument(c.UserContext(), path)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(UploadResponse{
		Path:   path,
		Result: result,
		Status: s.retriever.Status(),
	})
}

// handleSearch handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional, default 5): number of results to return
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query, topK, ok := s.queryParams(c)
	if !ok {
		return nil
	}

	results, err := s.retriever.Search(c.UserContext(), query, topK)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(SearchResponse{
		Query:   query,
		Results: results,
		Count:   len(results),
	})
}

// handleQuery is handleSearch with the passages joined into one text body.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	query, topK, ok := s.queryParams(c)
	if !ok {
		return nil
	}

	text, err := s.retriever.Query(c.UserContext(), query, topK)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.SendString(text)
}

// queryParams reads query and top_k, writing a 400 response and returning
// false when either is invalid.
func (s *Server) queryParams(c *fiber.Ctx) (string, int, bool) {
	query := c.Query("query")
	if query == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
		return "", 0, false
	}

	topK := vector.DefaultTopK
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			_ = c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a positive integer"})
			return "", 0, false
		}
		topK = parsed
	}

	return query, topK, true
}

func (s *Server) errorResponse(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, vector.ErrIndexNotReady):
		return fiber.StatusConflict
	case errors.Is(err, extract.ErrExtraction):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, embeddings.ErrEmbedding), errors.Is(err, vector.ErrConnection):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func supported(name string) bool {
	return slices.Contains(extractutils.SupportedExtensions, strings.ToLower(filepath.Ext(name)))
}
