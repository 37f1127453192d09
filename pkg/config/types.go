package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the persistent folio configuration stored as config.toml in the
// .folio/ directory. Every recognized option is listed here; unknown keys in
// a config file are rejected by ParseConfigTOML.
type Config struct {
	Version     int               `toml:"version"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	API         APIConfig         `toml:"api"`
	Storage     StorageConfig     `toml:"storage"`
	Events      EventsConfig      `toml:"events"`
	WebSearch   WebSearchConfig   `toml:"web_search"`
	Watch       WatchConfig       `toml:"watch"`
}

// ChunkingConfig controls how extracted text is split before embedding.
// Sizes are measured in characters.
type ChunkingConfig struct {
	ChunkSize    int `toml:"chunk_size,omitempty"`
	ChunkOverlap int `toml:"chunk_overlap,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`

	// BatchSize is the number of chunks sent per embedding request.
	BatchSize int `toml:"batch_size,omitempty"`

	// RateLimit caps embedding requests per second. Zero disables the
	// rate limiter and circuit breaker.
	RateLimit float64 `toml:"rate_limit,omitempty"`
}

// VectorStoreConfig selects the vector index backend.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	TopK int `toml:"top_k,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig holds where uploaded documents are written.
type StorageConfig struct {
	UploadDir string `toml:"upload_dir,omitempty"`
}

// EventsConfig selects the document event publisher.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// WebSearchConfig configures the web search tool exposed next to document
// search. The API key is read from the environment.
type WebSearchConfig struct {
	Provider   string `toml:"provider,omitempty"`
	NumResults int    `toml:"num_results,omitempty"`
}

// WatchConfig configures the upload directory watcher.
type WatchConfig struct {
	Dir     string `toml:"dir,omitempty"`
	Pattern string `toml:"pattern,omitempty"`
}

// configKeyInfo maps a dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
var configKeys = map[string]configKeyInfo{
	"chunking.chunk_size":    intKey("chunking.chunk_size", func(c *Config) *int { return &c.Chunking.ChunkSize }),
	"chunking.chunk_overlap": intKey("chunking.chunk_overlap", func(c *Config) *int { return &c.Chunking.ChunkOverlap }),

	"embedding.provider": stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":   stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":    stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.batch_size": intKey("embedding.batch_size", func(c *Config) *int { return &c.Embedding.BatchSize }),
	"embedding.rate_limit": {
		get: func(c *Config) string {
			if c.Embedding.RateLimit == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Embedding.RateLimit, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.rate_limit: %w", err)
			}
			c.Embedding.RateLimit = f
			return nil
		},
	},

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),

	"retrieval.top_k": intKey("retrieval.top_k", func(c *Config) *int { return &c.Retrieval.TopK }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"storage.upload_dir": stringKey(func(c *Config) *string { return &c.Storage.UploadDir }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = splitList(v)
			return nil
		},
	},
	"events.topic": stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"web_search.provider":    stringKey(func(c *Config) *string { return &c.WebSearch.Provider }),
	"web_search.num_results": intKey("web_search.num_results", func(c *Config) *int { return &c.WebSearch.NumResults }),

	"watch.dir":     stringKey(func(c *Config) *string { return &c.Watch.Dir }),
	"watch.pattern": stringKey(func(c *Config) *string { return &c.Watch.Pattern }),
}

// splitList parses a comma separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
