package pipeline_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/cmd/folio/pipeline"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/tool/serper"
)

func offlineConfig() *config.Config {
	cfg, err := config.PresetConfig("local")
	Expect(err).NotTo(HaveOccurred())
	cfg.Chunking.ChunkSize = 60
	cfg.Chunking.ChunkOverlap = 0
	return cfg
}

var _ = Describe("LoadConfig", func() {
	var configDir string

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
	})

	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String("config-dir", configDir, "")
		config.AddPipelineFlags(cmd)
		return cmd
	}

	It("returns defaults when nothing is configured", func() {
		cfg, err := pipeline.LoadConfig(newCmd(), config.PipelineFlags)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Retrieval.TopK).To(Equal(5))
		Expect(cfg.VectorStore.Provider).To(Equal("memory"))
	})

	It("lets flags override the config file", func() {
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("[retrieval]\ntop_k = 8\n"), 0o644)).To(Succeed())

		cmd := newCmd()
		Expect(cmd.ParseFlags([]string{"--top-k", "3"})).To(Succeed())

		cfg, err := pipeline.LoadConfig(cmd, config.PipelineFlags)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Retrieval.TopK).To(Equal(3))
	})

	It("rejects unknown config keys", func() {
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("[retrieval]\nlimit = 8\n"), 0o644)).To(Succeed())

		_, err := pipeline.LoadConfig(newCmd(), config.PipelineFlags)
		Expect(err).To(MatchError(config.ErrUnknownKey))
	})

	It("exports stored provider keys", func() {
		GinkgoT().Setenv(serper.APIKeyEnv, "")
		Expect(os.Unsetenv(serper.APIKeyEnv)).To(Succeed())

		creds, err := credentials.NewManager(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(creds.SetKey("serper", "stored-key")).To(Succeed())

		_, err = pipeline.LoadConfig(newCmd(), config.PipelineFlags)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Getenv(serper.APIKeyEnv)).To(Equal("stored-key"))
	})
})

var _ = Describe("Build", func() {
	It("wires an offline pipeline that indexes and queries", func() {
		ctx := context.Background()
		p, err := pipeline.Build(ctx, offlineConfig(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)

		path := filepath.Join(GinkgoT().TempDir(), "notes.txt")
		Expect(os.WriteFile(path, []byte("Refunds take thirty days.\n\nShipping is free over fifty dollars."), 0o644)).To(Succeed())

		result, err := p.Retriever.IndexDocument(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Chunks).To(Equal(2))
		Expect(result.Dimension).To(Equal(uint(512)))

		text, err := p.Retriever.Query(ctx, "refunds", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).NotTo(BeEmpty())
	})

	It("rejects an invalid chunking setup", func() {
		cfg := offlineConfig()
		cfg.Chunking.ChunkOverlap = cfg.Chunking.ChunkSize
		_, err := pipeline.Build(context.Background(), cfg, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		cfg := offlineConfig()
		cfg.VectorStore.Provider = "pinecone"
		_, err := pipeline.Build(context.Background(), cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider")))
	})
})

var _ = Describe("Tools", func() {
	var p *pipeline.Pipeline

	BeforeEach(func() {
		var err error
		p, err = pipeline.Build(context.Background(), offlineConfig(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)
	})

	names := func(cfg *config.Config) []string {
		var out []string
		for _, t := range pipeline.Tools(cfg, p.Retriever, logger.Nop()).All() {
			out = append(out, t.Name())
		}
		return out
	}

	It("offers document search without a web search key", func() {
		GinkgoT().Setenv(serper.APIKeyEnv, "")
		Expect(names(offlineConfig())).To(Equal([]string{"document_search"}))
	})

	It("adds web search when a key is present", func() {
		GinkgoT().Setenv(serper.APIKeyEnv, "test-key")
		Expect(names(offlineConfig())).To(Equal([]string{"document_search", "web_search"}))
	})

	It("skips web search for other providers", func() {
		GinkgoT().Setenv(serper.APIKeyEnv, "test-key")
		cfg := offlineConfig()
		cfg.WebSearch.Provider = "none"
		Expect(names(cfg)).To(Equal([]string{"document_search"}))
	})
})
