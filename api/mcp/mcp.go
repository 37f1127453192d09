// Package mcp exposes folio tools over the Model Context Protocol so an
// orchestrating agent can call them.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/folio/pkg/tool"
	"github.com/papercomputeco/folio/pkg/utils"
)

type Config struct {
	// Tools are registered as MCP tools under their own names.
	Tools *tool.Registry

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates an MCP server with one tool per registry entry.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "folio",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)
	s.mcpServer = mcpServer

	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	if c.Noop {
		return s, nil
	}

	if c.Tools == nil || len(c.Tools.All()) == 0 {
		return nil, errors.New("at least one tool is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	for _, t := range c.Tools.All() {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
		}, s.toolHandler(t))
		c.Logger.Debug("registered MCP tool", "tool", t.Name())
	}

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying protocol server, for in-process transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
