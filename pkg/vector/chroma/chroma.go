// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/papercomputeco/folio/pkg/utils"
	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for folio chunks.
	DefaultCollectionName = "folio_document"

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	httpClient     *http.Client
	logger         *slog.Logger

	mu           sync.RWMutex
	collectionID string
	dim          uint
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// MaxRetries bounds the heartbeat attempts made while Chroma starts up.
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

type collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float32        `json:"distances"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

// NewDriver creates a Chroma driver. The collection itself is created by
// Rebuild.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	if err := d.waitReady(context.Background(), c); err != nil {
		return nil, err
	}

	logger.Info("connected to Chroma",
		"url", c.URL,
		"collection", collectionName,
	)

	return d, nil
}

// waitReady polls the heartbeat endpoint with exponential backoff.
func (d *Driver) waitReady(ctx context.Context, c Config) error {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		status, body, err := d.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil)
		switch {
		case err != nil:
			lastErr = err
		case status != http.StatusOK:
			lastErr = fmt.Errorf("heartbeat status %d: %s", status, body)
		default:
			return nil
		}

		if attempt == maxRetries {
			break
		}

		d.logger.Debug("chroma not ready, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", lastErr,
		)
		time.Sleep(delay)
		delay = min(delay*2, maxDelay)
	}

	return fmt.Errorf("%w: chroma not ready after %d attempts: %v", vector.ErrConnection, maxRetries, lastErr)
}

// Rebuild deletes the named collection if present and creates it again with
// cosine space.
func (d *Driver) Rebuild(ctx context.Context, dimension uint) error {
	if dimension == 0 {
		return fmt.Errorf("%w: collection dimension must be positive", vector.ErrDimensionMismatch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	status, body, err := d.do(ctx, http.MethodDelete, collectionsPath+"/"+d.collectionName, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("failed to delete collection: status %d: %s", status, body)
	}

	status, body, err = d.do(ctx, http.MethodPost, collectionsPath, createRequest{
		Name:     d.collectionName,
		Metadata: map[string]any{"hnsw:space": "cosine"},
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("failed to create collection: status %d: %s", status, body)
	}

	var c collection
	if err := json.Unmarshal(body, &c); err != nil {
		return fmt.Errorf("decoding create response: %w", err)
	}

	d.collectionID = c.ID
	d.dim = dimension

	d.logger.Debug("rebuilt chroma collection",
		"collection_id", c.ID,
		"dimension", dimension,
	)
	return nil
}

func (d *Driver) Upsert(ctx context.Context, points []vector.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.collectionID == "" {
		return fmt.Errorf("%w: collection has not been created", vector.ErrIndexNotReady)
	}
	if err := vector.CheckDimensions(points, d.dim); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	req := upsertRequest{
		IDs:        make([]string, len(points)),
		Embeddings: make([][]float32, len(points)),
		Documents:  make([]string, len(points)),
		Metadatas:  make([]map[string]any, len(points)),
	}
	for i, p := range points {
		req.IDs[i] = strconv.FormatUint(p.ID, 10)
		req.Embeddings[i] = p.Vector
		req.Documents[i] = p.Payload.Text
		req.Metadatas[i] = map[string]any{"source": p.Payload.Source}
	}

	status, body, err := d.do(ctx, http.MethodPost, d.collectionPath("upsert"), req)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("failed to upsert points: status %d: %s", status, body)
	}

	d.logger.Debug("upserted points to chroma", "count", len(points))
	return nil
}

// Search queries the collection and converts cosine distance back to
// similarity. Ties are ordered by ID within the returned page only.
func (d *Driver) Search(ctx context.Context, vec []float32, k int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.collectionID == "" {
		return nil, vector.ErrIndexNotReady
	}
	if err := vector.CheckQuery(vec, d.dim); err != nil {
		return nil, err
	}

	status, body, err := d.do(ctx, http.MethodPost, d.collectionPath("query"), queryRequest{
		QueryEmbeddings: [][]float32{vec},
		NResults:        vector.Limit(k),
		Include:         []string{"documents", "metadatas", "distances"},
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to query: status %d: %s", status, body)
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}

	// Process first group (we only query with one embedding)
	if len(resp.IDs) == 0 || len(resp.IDs[0]) == 0 {
		return nil, vector.ErrIndexNotReady
	}

	results := make([]vector.QueryResult, 0, len(resp.IDs[0]))
	for i, rawID := range resp.IDs[0] {
		id, err := strconv.ParseUint(rawID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing point id %q: %w", rawID, err)
		}

		r := vector.QueryResult{ID: id}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			r.Payload.Text = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) && resp.Metadatas[0][i] != nil {
			r.Payload.Source, _ = resp.Metadatas[0][i]["source"].(string)
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			r.Score = 1 - resp.Distances[0][i]
		}
		results = append(results, r)
	}

	vector.SortResults(results)
	return results, nil
}

func (d *Driver) Count(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.collectionID == "" {
		return 0, nil
	}

	status, body, err := d.do(ctx, http.MethodGet, d.collectionPath("count"), nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("failed to count points: status %d: %s", status, body)
	}

	var n int
	if err := json.Unmarshal(body, &n); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return n, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

func (d *Driver) collectionPath(op string) string {
	return collectionsPath + "/" + d.collectionID + "/" + op
}

// do sends a JSON request and returns the status and raw body. Transport
// failures are wrapped in vector.ErrConnection.
func (d *Driver) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", utils.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading response: %v", vector.ErrConnection, err)
	}
	return resp.StatusCode, body, nil
}

var _ vector.Driver = (*Driver)(nil)
