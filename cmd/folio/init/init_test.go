package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/folio/cmd/folio/init"
	"github.com/papercomputeco/folio/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(os.Chdir, origDir)
	})

	run := func(args ...string) (string, error) {
		cmd := initcmder.NewInitCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	loadConfig := func() *config.Config {
		data, err := os.ReadFile(filepath.Join(tmpDir, ".folio", "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		cfg := &config.Config{}
		_, err = toml.Decode(string(data), cfg)
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	It("creates .folio with a default config.toml", func() {
		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Initialized .folio directory"))

		cfg := loadConfig()
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
		Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
		Expect(cfg.Chunking.ChunkSize).To(Equal(1000))
		Expect(cfg.Chunking.ChunkOverlap).To(Equal(150))
		Expect(cfg.Retrieval.TopK).To(Equal(5))
	})

	It("reports an existing directory without touching other files", func() {
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".folio"), 0o755)).To(Succeed())
		marker := filepath.Join(tmpDir, ".folio", "keep.txt")
		Expect(os.WriteFile(marker, []byte("keep"), 0o600)).To(Succeed())

		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Already initialized"))

		data, err := os.ReadFile(marker)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("keep"))
		Expect(loadConfig().Embedding.Provider).To(Equal("ollama"))
	})

	It("keeps an existing config when no preset is given", func() {
		_, err := run("--preset", "local")
		Expect(err).NotTo(HaveOccurred())

		_, err = run()
		Expect(err).NotTo(HaveOccurred())
		Expect(loadConfig().Embedding.Provider).To(Equal("hash"))
	})

	It("overwrites the config when re-run with a preset", func() {
		_, err := run()
		Expect(err).NotTo(HaveOccurred())

		_, err = run("--preset", "openai")
		Expect(err).NotTo(HaveOccurred())

		cfg := loadConfig()
		Expect(cfg.Embedding.Provider).To(Equal("openai"))
		Expect(cfg.Embedding.Model).To(Equal("text-embedding-3-small"))
		Expect(cfg.Embedding.Dimensions).To(Equal(uint(1536)))
	})

	It("writes the offline preset", func() {
		_, err := run("--preset", "local")
		Expect(err).NotTo(HaveOccurred())

		cfg := loadConfig()
		Expect(cfg.Embedding.Provider).To(Equal("hash"))
		Expect(cfg.Embedding.Dimensions).To(Equal(uint(512)))
	})

	It("rejects an unknown preset", func() {
		_, err := run("--preset", "nope")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown preset"))
	})

	Context("with a remote preset", func() {
		serve := func(status int, body string) string {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
				fmt.Fprint(w, body)
			}))
			DeferCleanup(srv.Close)
			return srv.URL
		}

		It("writes the fetched config", func() {
			url := serve(http.StatusOK, "[embedding]\nprovider = \"gemini\"\nmodel = \"text-embedding-004\"\n\n[retrieval]\ntop_k = 3\n")

			_, err := run("--preset", url)
			Expect(err).NotTo(HaveOccurred())

			cfg := loadConfig()
			Expect(cfg.Embedding.Provider).To(Equal("gemini"))
			Expect(cfg.Retrieval.TopK).To(Equal(3))
		})

		It("fails on a non-200 response", func() {
			url := serve(http.StatusNotFound, "missing")

			_, err := run("--preset", url)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("HTTP 404"))
		})

		It("fails on invalid TOML", func() {
			url := serve(http.StatusOK, "this is [not toml")

			_, err := run("--preset", url)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing"))
		})

		It("rejects unknown keys", func() {
			url := serve(http.StatusOK, "[embedding]\nflavour = \"vanilla\"\n")

			_, err := run("--preset", url)
			Expect(err).To(MatchError(config.ErrUnknownKey))
		})

		It("fails when the server is unreachable", func() {
			_, err := run("--preset", "http://127.0.0.1:1/config.toml")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("fetching remote config"))
		})
	})
})
