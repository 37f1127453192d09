// Package pipeline builds the retrieval stack shared by folio commands from
// the resolved configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/folio/pkg/embeddings/utils"
	"github.com/papercomputeco/folio/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/folio/pkg/eventstream/utils"
	extractutils "github.com/papercomputeco/folio/pkg/extract/utils"
	"github.com/papercomputeco/folio/pkg/retrieval"
	"github.com/papercomputeco/folio/pkg/tool"
	"github.com/papercomputeco/folio/pkg/tool/serper"
	"github.com/papercomputeco/folio/pkg/vector"
	vectorutils "github.com/papercomputeco/folio/pkg/vector/utils"
)

// LoadConfig resolves configuration for cmd: defaults, config.toml, FOLIO_
// environment variables, then any of the given flags the user set. Stored
// provider keys are exported to the environment first.
func LoadConfig(cmd *cobra.Command, flagSets ...config.FlagSet) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if _, err := creds.InjectEnv(); err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	for _, fs := range flagSets {
		config.BindRegisteredFlags(v, cmd, fs, fs.Keys())
	}

	cfg, err := config.Resolve(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// Pipeline owns the collaborators behind a Retriever so they can be closed
// together.
type Pipeline struct {
	Retriever *retrieval.Retriever
	Embedder  embeddings.Embedder
	Driver    vector.Driver
	Publisher eventstream.Publisher
}

// Build constructs the embedder, vector index, event publisher and
// retriever described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	splitter, err := chunker.New(chunker.Config{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	p := &Pipeline{}

	p.Embedder, err = embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		RateLimit:    cfg.Embedding.RateLimit,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	p.Driver, err = vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Collection:   cfg.VectorStore.Collection,
		Logger:       logger,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	p.Publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       logger,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	p.Retriever, err = retrieval.New(retrieval.Config{
		Extractor:      extractutils.NewByExtension(logger),
		Splitter:       splitter,
		Embedder:       p.Embedder,
		Driver:         p.Driver,
		Publisher:      p.Publisher,
		TopK:           cfg.Retrieval.TopK,
		BatchSize:      cfg.Embedding.BatchSize,
		VectorStore:    cfg.VectorStore.Provider,
		EmbeddingModel: cfg.Embedding.Model,
		Logger:         logger,
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// Close releases every collaborator that was created.
func (p *Pipeline) Close() error {
	var errs []error
	if p.Publisher != nil {
		errs = append(errs, p.Publisher.Close())
	}
	if p.Driver != nil {
		errs = append(errs, p.Driver.Close())
	}
	if p.Embedder != nil {
		errs = append(errs, p.Embedder.Close())
	}
	return errors.Join(errs...)
}

// Tools returns the tools an orchestrator may call: document search always,
// plus web search when a Serper API key is present in the environment.
func Tools(cfg *config.Config, r *retrieval.Retriever, logger *slog.Logger) *tool.Registry {
	registry := tool.NewRegistry(r)

	if cfg.WebSearch.Provider != "serper" {
		return registry
	}

	apiKey := os.Getenv(serper.APIKeyEnv)
	if apiKey == "" {
		logger.Debug("web search disabled", "reason", serper.APIKeyEnv+" not set")
		return registry
	}

	web, err := serper.New(serper.Config{
		APIKey:     apiKey,
		NumResults: cfg.WebSearch.NumResults,
	})
	if err != nil {
		logger.Warn("web search disabled", "error", err)
		return registry
	}
	registry.Add(web)

	return registry
}
