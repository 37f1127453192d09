package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag that maps onto a config
// key. Commands reference flags by registry key so the same logical flag has
// the same name, shorthand, and help text everywhere.
type Flag struct {
	// Name is the long flag name (e.g. "embedding-model").
	Name string

	// Shorthand is the one-letter short flag. Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to.
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet maps registry keys to flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagChunkSize       = "chunk-size"
	FlagChunkOverlap    = "chunk-overlap"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagTopK            = "top-k"
	FlagAPIListen       = "listen"
	FlagUploadDir       = "upload-dir"
	FlagWatchDir        = "watch-dir"
)

// PipelineFlags are shared by every command that builds a retrieval pipeline.
var PipelineFlags = FlagSet{
	FlagChunkSize: {
		Name:        "chunk-size",
		ViperKey:    "chunking.chunk_size",
		Description: "Maximum chunk size in characters",
	},
	FlagChunkOverlap: {
		Name:        "chunk-overlap",
		ViperKey:    "chunking.chunk_overlap",
		Description: "Characters of overlap between adjacent chunks",
	},
	FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Embedding provider (ollama, openai, gemini, hash)",
	},
	FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedding provider URL",
	},
	FlagEmbeddingModel: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	FlagEmbeddingDims: {
		Name:        "embedding-dimensions",
		ViperKey:    "embedding.dimensions",
		Description: "Embedding dimensionality requested from the provider",
	},
	FlagVectorStoreProv: {
		Name:        "vector-store-provider",
		ViperKey:    "vector_store.provider",
		Description: "Vector index backend (memory, sqlite, qdrant, chroma, postgres)",
	},
	FlagVectorStoreTgt: {
		Name:        "vector-store-target",
		ViperKey:    "vector_store.target",
		Description: "Vector index target (path, host:port, URL, or DSN)",
	},
	FlagTopK: {
		Name:        "top-k",
		Shorthand:   "k",
		ViperKey:    "retrieval.top_k",
		Description: "Number of passages returned per query",
	},
}

// ServeFlags are the flags specific to folio serve.
var ServeFlags = FlagSet{
	FlagAPIListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagUploadDir: {
		Name:        "upload-dir",
		ViperKey:    "storage.upload_dir",
		Description: "Directory uploaded documents are written to",
	},
	FlagWatchDir: {
		Name:        "watch-dir",
		ViperKey:    "watch.dir",
		Description: "Directory to watch for new documents",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddPipelineFlags registers every PipelineFlags entry on cmd. Values are
// read back through viper, so the flags are bound without local targets.
func AddPipelineFlags(cmd *cobra.Command) {
	for _, key := range []string{FlagEmbeddingProv, FlagEmbeddingTgt, FlagEmbeddingModel, FlagVectorStoreProv, FlagVectorStoreTgt} {
		AddStringFlag(cmd, PipelineFlags, key, new(string))
	}
	for _, key := range []string{FlagChunkSize, FlagChunkOverlap, FlagTopK} {
		AddIntFlag(cmd, PipelineFlags, key, new(int))
	}
	AddUintFlag(cmd, PipelineFlags, FlagEmbeddingDims, new(uint))
}

// BindRegisteredFlags binds already-registered flags to viper. Call it in
// PreRunE after InitViper so flags sit at the top of the precedence chain.
// Only flags the user actually set are bound.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil || !f.Changed {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// Keys returns the registry keys of fs.
func (fs FlagSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	return keys
}

func defaultViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
