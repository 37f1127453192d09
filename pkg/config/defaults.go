package config

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 150

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingBatchSize  = 32

	defaultVectorProvider   = "memory"
	defaultVectorCollection = "folio_document"

	defaultTopK = 5

	defaultAPIListen = ":8081"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "folio.documents"

	defaultWebSearchProvider   = "serper"
	defaultWebSearchNumResults = 5

	defaultWatchPattern = "*.pdf"
)

// NewDefaultConfig returns a Config with every default filled in. This is the
// single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Chunking: ChunkingConfig{
			ChunkSize:    defaultChunkSize,
			ChunkOverlap: defaultChunkOverlap,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			BatchSize:  defaultEmbeddingBatchSize,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Retrieval: RetrievalConfig{
			TopK: defaultTopK,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		WebSearch: WebSearchConfig{
			Provider:   defaultWebSearchProvider,
			NumResults: defaultWebSearchNumResults,
		},
		Watch: WatchConfig{
			Pattern: defaultWatchPattern,
		},
	}
}
