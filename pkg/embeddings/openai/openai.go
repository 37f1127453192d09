// Package openai implements embeddings.Embedder for OpenAI-compatible
// /v1/embeddings endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/utils"
)

const (
	DefaultBaseURL        = "https://api.openai.com"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultMaxRetries     = 5

	// APIKeyEnv is the environment variable holding the API key.
	APIKeyEnv = "OPENAI_API_KEY"
)

// EmbedderConfig holds configuration for the OpenAI-compatible embedder.
type EmbedderConfig struct {
	// BaseURL is the server root; "/v1/embeddings" is appended.
	BaseURL string
	APIKey  string
	Model   string

	// Dimensions requests shortened vectors from models that support it.
	Dimensions uint

	Timeout    time.Duration
	MaxRetries int
}

type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions uint
	maxRetries int
	httpClient *http.Client
}

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions uint     `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set %s)", embeddings.ErrEmbedding, APIKeyEnv)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Embedder{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request, retrying on transport errors,
// 429 and 5xx responses with exponential backoff or the server's
// Retry-After.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{
		Model:      e.model,
		Input:      texts,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", embeddings.ErrEmbedding, err)
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, lastDelay(lastErr, attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %w", embeddings.ErrEmbedding, err)
			}
		}

		vectors, err := e.do(ctx, body, len(texts))
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}

	return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, lastErr)
}

func (e *Embedder) do(ctx context.Context, body []byte, n int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent())
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		msg, _ := io.ReadAll(resp.Body)
		return nil, &retryableError{
			err:        fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(out.Data) != n {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(out.Data), n)
	}

	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	vectors := make([][]float32, n)
	for i, d := range out.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (e *Embedder) Close() error {
	return nil
}

type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

func isRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

// lastDelay prefers the server's Retry-After over local backoff.
func lastDelay(err error, attempt int) time.Duration {
	if r, ok := err.(*retryableError); ok && r.retryAfter > 0 {
		return r.retryAfter
	}
	return retryDelay(attempt)
}

// retryDelay is exponential backoff from 200ms, capped at 5s.
func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ embeddings.Embedder = (*Embedder)(nil)
