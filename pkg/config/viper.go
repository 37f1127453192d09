package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/folio/pkg/dotdir"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// FOLIO_EMBEDDING_PROVIDER.
const EnvPrefix = "FOLIO"

// InitViper creates a *viper.Viper seeded with NewDefaultConfig(), the
// config.toml found via dotdir resolution, and FOLIO_ environment variables.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (FOLIO_API_LISTEN, FOLIO_RETRIEVAL_TOP_K, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		// viper ignores unknown keys, so run the strict parser first.
		data, err := os.ReadFile(filepath.Join(target, configFile))
		switch {
		case err == nil:
			if _, err := ParseConfigTOML(data); err != nil {
				return nil, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("reading config: %w", err)
		}

		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Resolve reads the effective configuration out of v and validates it.
func Resolve(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Chunking: ChunkingConfig{
			ChunkSize:    v.GetInt("chunking.chunk_size"),
			ChunkOverlap: v.GetInt("chunking.chunk_overlap"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			BatchSize:  v.GetInt("embedding.batch_size"),
			RateLimit:  v.GetFloat64("embedding.rate_limit"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
		},
		Retrieval: RetrievalConfig{
			TopK: v.GetInt("retrieval.top_k"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Storage: StorageConfig{
			UploadDir: v.GetString("storage.upload_dir"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  brokersFromViper(v),
			Topic:    v.GetString("events.topic"),
		},
		WebSearch: WebSearchConfig{
			Provider:   v.GetString("web_search.provider"),
			NumResults: v.GetInt("web_search.num_results"),
		},
		Watch: WatchConfig{
			Dir:     v.GetString("watch.dir"),
			Pattern: v.GetString("watch.pattern"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// brokersFromViper accepts both a TOML array and a comma separated env value.
func brokersFromViper(v *viper.Viper) []string {
	var out []string
	for _, b := range v.GetStringSlice("events.brokers") {
		out = append(out, splitList(b)...)
	}
	return out
}

// setViperDefaults registers NewDefaultConfig() into viper using dotted keys.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Chunking
	v.SetDefault("chunking.chunk_size", d.Chunking.ChunkSize)
	v.SetDefault("chunking.chunk_overlap", d.Chunking.ChunkOverlap)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.rate_limit", d.Embedding.RateLimit)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("storage.upload_dir", d.Storage.UploadDir)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Web search
	v.SetDefault("web_search.provider", d.WebSearch.Provider)
	v.SetDefault("web_search.num_results", d.WebSearch.NumResults)

	// Watch
	v.SetDefault("watch.dir", d.Watch.Dir)
	v.SetDefault("watch.pattern", d.Watch.Pattern)
}
