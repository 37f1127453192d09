package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/folio/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// orderedKeys matches the TOML section layout.
var orderedKeys = []string{
	"chunking.chunk_size",
	"chunking.chunk_overlap",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.batch_size",
	"embedding.rate_limit",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.collection",
	"retrieval.top_k",
	"api.listen",
	"storage.upload_dir",
	"events.provider",
	"events.brokers",
	"events.topic",
	"web_search.provider",
	"web_search.num_results",
	"watch.dir",
	"watch.pattern",
}

// ValidConfigKeys returns every supported key in section order.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}
	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml from the resolved .folio/ directory. A missing
// file yields NewDefaultConfig(); fields set in the file override defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = d.Chunking.ChunkSize
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = d.Chunking.ChunkOverlap
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = d.Embedding.Provider
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = d.Embedding.Model
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = d.Embedding.Dimensions
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = d.Embedding.BatchSize
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = d.VectorStore.Provider
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = d.VectorStore.Collection
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = d.Retrieval.TopK
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = d.API.Listen
	}

	if cfg.Events.Provider == "" {
		cfg.Events.Provider = d.Events.Provider
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = d.Events.Topic
	}

	if cfg.WebSearch.Provider == "" {
		cfg.WebSearch.Provider = d.WebSearch.Provider
	}
	if cfg.WebSearch.NumResults == 0 {
		cfg.WebSearch.NumResults = d.WebSearch.NumResults
	}

	if cfg.Watch.Pattern == "" {
		cfg.Watch.Pattern = d.Watch.Pattern
	}
}

// Validate reports option values no component can run with.
func (cfg *Config) Validate() error {
	if cfg.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunking.chunk_size must be positive, got %d", ErrInvalidConfig, cfg.Chunking.ChunkSize)
	}
	if cfg.Chunking.ChunkOverlap < 0 || cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunking.chunk_overlap must be in [0, %d), got %d",
			ErrInvalidConfig, cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	}
	if cfg.Embedding.BatchSize < 0 {
		return fmt.Errorf("%w: embedding.batch_size must not be negative", ErrInvalidConfig)
	}
	if cfg.Embedding.RateLimit < 0 {
		return fmt.Errorf("%w: embedding.rate_limit must not be negative", ErrInvalidConfig)
	}
	if cfg.Retrieval.TopK < 0 {
		return fmt.Errorf("%w: retrieval.top_k must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SaveConfig writes cfg to config.toml in the resolved .folio/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets key to value, validates, and saves.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string form of key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config tuned for the named embedding setup.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "ollama":
		return cfg, nil

	case "local":
		cfg.Embedding.Provider = "hash"
		cfg.Embedding.Model = ""
		cfg.Embedding.Dimensions = 512
		return cfg, nil

	case "openai":
		cfg.Embedding.Provider = "openai"
		cfg.Embedding.Target = "https://api.openai.com"
		cfg.Embedding.Model = "text-embedding-3-small"
		cfg.Embedding.Dimensions = 1536
		cfg.Embedding.RateLimit = 5
		return cfg, nil

	case "gemini":
		cfg.Embedding.Provider = "gemini"
		cfg.Embedding.Model = "text-embedding-004"
		cfg.Embedding.Dimensions = 768
		cfg.Embedding.RateLimit = 5
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"ollama", "local", "openai", "gemini"}
}

// ParseConfigTOML parses raw TOML bytes into a Config. Keys outside the
// Config structure are rejected with ErrUnknownKey.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(keys, ", "))
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
