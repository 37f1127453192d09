// Package embeddingutils builds an embeddings.Embedder from configuration.
package embeddingutils

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/embeddings/gemini"
	"github.com/papercomputeco/folio/pkg/embeddings/guard"
	"github.com/papercomputeco/folio/pkg/embeddings/hash"
	"github.com/papercomputeco/folio/pkg/embeddings/ollama"
	"github.com/papercomputeco/folio/pkg/embeddings/openai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderHash   = "hash"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   uint

	// RateLimit enables the guard wrapper when positive.
	RateLimit float64

	Logger *slog.Logger
}

func NewEmbedder(ctx context.Context, o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case ProviderOllama:
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case ProviderOpenAI:
		e, err = openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL:    o.TargetURL,
			APIKey:     os.Getenv(openai.APIKeyEnv),
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case ProviderGemini:
		e, err = gemini.NewEmbedder(ctx, gemini.EmbedderConfig{
			APIKey:   os.Getenv(gemini.APIKeyEnv),
			Model:    o.Model,
			Endpoint: o.TargetURL,
		})
	case ProviderHash:
		e = hash.NewEmbedder(hash.EmbedderConfig{Dimensions: o.Dimensions})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.RateLimit > 0 {
		e = guard.New(e, guard.Config{
			Name:              o.ProviderType,
			RequestsPerSecond: o.RateLimit,
		}, o.Logger)
	}

	return e, nil
}
