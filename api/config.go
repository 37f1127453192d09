// Package api provides the HTTP surface for uploading a document and
// querying its index.
package api

import "net/http"

// DefaultMaxUploadSize is the request body limit for uploads.
const DefaultMaxUploadSize = 32 << 20

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// UploadDir is where uploaded documents are persisted before indexing.
	UploadDir string

	// MaxUploadSize is the largest accepted request body in bytes.
	MaxUploadSize int

	// MCPHandler, if set, is mounted at /mcp.
	MCPHandler http.Handler
}
