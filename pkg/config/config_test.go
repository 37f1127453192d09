package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/config"
)

var _ = Describe("Configer", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	Describe("LoadConfig", func() {
		It("returns defaults when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
			Expect(cfg.Chunking.ChunkSize).To(Equal(1000))
			Expect(cfg.Chunking.ChunkOverlap).To(Equal(150))
			Expect(cfg.Retrieval.TopK).To(Equal(5))
			Expect(cfg.VectorStore.Provider).To(Equal("memory"))
		})

		It("overlays file values on defaults", func() {
			writeConfig(`
[chunking]
chunk_size = 500

[vector_store]
provider = "qdrant"
target = "localhost:6334"
`)
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Chunking.ChunkSize).To(Equal(500))
			Expect(cfg.Chunking.ChunkOverlap).To(Equal(150))
			Expect(cfg.VectorStore.Provider).To(Equal("qdrant"))
			Expect(cfg.VectorStore.Target).To(Equal("localhost:6334"))
			Expect(cfg.Embedding.Provider).To(Equal("ollama"))
		})

		It("rejects unknown keys", func() {
			writeConfig(`
[chunking]
chunk_size = 500
chunk_sise = 100
`)
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(config.ErrUnknownKey))
			Expect(err.Error()).To(ContainSubstring("chunking.chunk_sise"))
		})

		It("rejects unknown sections", func() {
			writeConfig(`
[proxy]
listen = ":8080"
`)
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(config.ErrUnknownKey))
		})

		It("rejects unsupported versions", func() {
			writeConfig("version = 7\n")
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version"))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("persists string values", func() {
			Expect(c.SetConfigValue("embedding.model", "mxbai-embed-large")).To(Succeed())

			value, err := c.GetConfigValue("embedding.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("mxbai-embed-large"))
			Expect(filepath.Join(tmpDir, "config.toml")).To(BeAnExistingFile())
		})

		It("persists numeric values", func() {
			Expect(c.SetConfigValue("retrieval.top_k", "8")).To(Succeed())
			Expect(c.SetConfigValue("embedding.rate_limit", "2.5")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Retrieval.TopK).To(Equal(8))
			Expect(cfg.Embedding.RateLimit).To(Equal(2.5))
		})

		It("parses comma separated broker lists", func() {
			Expect(c.SetConfigValue("events.brokers", "kafka-1:9092, kafka-2:9092")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Events.Brokers).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))

			value, err := c.GetConfigValue("events.brokers")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("kafka-1:9092,kafka-2:9092"))
		})

		It("rejects unknown keys", func() {
			Expect(c.SetConfigValue("proxy.provider", "x")).To(MatchError(config.ErrUnknownKey))
			_, err := c.GetConfigValue("proxy.provider")
			Expect(err).To(MatchError(config.ErrUnknownKey))
		})

		It("rejects malformed numbers", func() {
			Expect(c.SetConfigValue("chunking.chunk_size", "big")).NotTo(Succeed())
			Expect(c.SetConfigValue("embedding.dimensions", "-1")).NotTo(Succeed())
		})

		It("rejects an overlap at least as large as the chunk size", func() {
			err := c.SetConfigValue("chunking.chunk_overlap", "1000")
			Expect(err).To(MatchError(config.ErrInvalidConfig))
		})
	})

	Describe("ValidConfigKeys", func() {
		It("lists every key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys[0]).To(Equal("chunking.chunk_size"))
			Expect(keys).To(ContainElements("embedding.provider", "vector_store.collection", "watch.pattern"))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
		})
	})

	Describe("PresetConfig", func() {
		It("returns a hash embedder for the local preset", func() {
			cfg, err := config.PresetConfig("local")
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Embedding.Provider).To(Equal("hash"))
			Expect(cfg.Validate()).To(Succeed())
		})

		It("rejects unknown presets", func() {
			_, err := config.PresetConfig("anthropic")
			Expect(err).To(HaveOccurred())
		})
	})
})
