// Package gemini implements embeddings.Embedder with Google's Generative AI
// embedding models.
package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/papercomputeco/folio/pkg/embeddings"
)

const (
	DefaultEmbeddingModel = "text-embedding-004"

	// APIKeyEnv is the environment variable holding the API key.
	APIKeyEnv = "GEMINI_API_KEY"

	// maxBatch is the per-request limit of BatchEmbedContents.
	maxBatch = 100
)

type EmbedderConfig struct {
	APIKey string
	Model  string

	// Endpoint overrides the API endpoint, mainly for tests.
	Endpoint string
}

type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set %s)", embeddings.ErrEmbedding, APIKeyEnv)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating client: %v", embeddings.ErrEmbedding, err)
	}

	return &Embedder{
		client: client,
		model:  client.EmbeddingModel(model),
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", embeddings.ErrEmbedding)
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch issues BatchEmbedContents calls of at most 100 texts each.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		batch := e.model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		resp, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
				embeddings.ErrEmbedding, len(resp.Embeddings), end-start)
		}

		for _, emb := range resp.Embeddings {
			if emb == nil {
				return nil, fmt.Errorf("%w: missing embedding in batch", embeddings.ErrEmbedding)
			}
			vectors = append(vectors, emb.Values)
		}
	}

	return vectors, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
