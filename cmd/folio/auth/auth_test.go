package authcmder_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/folio/cmd/folio/auth"
	"github.com/papercomputeco/folio/pkg/credentials"
)

var _ = Describe("Auth Command", func() {
	var (
		tmpDir string
		mgr    *credentials.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		var err error
		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	run := func(stdin string, args ...string) (string, error) {
		cmd := authcmder.NewAuthCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .folio/ config directory")
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		err := cmd.Execute()
		return out.String(), err
	}

	Describe("NewAuthCmd", func() {
		It("creates a command with list and remove flags", func() {
			cmd := authcmder.NewAuthCmd()
			Expect(cmd.Use).To(Equal("auth [provider]"))
			Expect(cmd.Flags().Lookup("list")).NotTo(BeNil())
			Expect(cmd.Flags().Lookup("remove")).NotTo(BeNil())
		})
	})

	It("stores a piped key", func() {
		out, err := run("sk-test\n", "openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("OPENAI_API_KEY"))

		key, err := mgr.GetKey("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("sk-test"))
	})

	It("normalizes the provider name", func() {
		_, err := run("serp\n", " Serper ")
		Expect(err).NotTo(HaveOccurred())

		key, err := mgr.GetKey("serper")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("serp"))
	})

	It("rejects an empty key", func() {
		_, err := run("   \n", "gemini")
		Expect(err).To(MatchError(ContainSubstring("cannot be empty")))
	})

	It("fails without input", func() {
		_, err := run("", "gemini")
		Expect(err).To(MatchError(ContainSubstring("no input")))
	})

	Describe("--list flag", func() {
		It("shows no credentials when none stored", func() {
			out, err := run("", "--list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("No stored credentials"))
		})

		It("lists stored credentials", func() {
			Expect(mgr.SetKey("qdrant", "q")).To(Succeed())

			out, err := run("", "--list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("qdrant"))
			Expect(out).To(ContainSubstring("QDRANT_API_KEY"))
		})
	})

	Describe("--remove flag", func() {
		It("removes stored credentials", func() {
			Expect(mgr.SetKey("openai", "sk-test")).To(Succeed())

			_, err := run("", "--remove", "openai")
			Expect(err).NotTo(HaveOccurred())

			key, err := mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})
	})

	Describe("provider argument validation", func() {
		It("returns error when no provider given", func() {
			_, err := run("")
			Expect(err).To(MatchError(ContainSubstring("provider argument required")))
		})

		It("returns error for unsupported provider", func() {
			_, err := run("sk-test\n", "ollama")
			Expect(err).To(MatchError(ContainSubstring("unsupported provider")))
		})
	})

	Describe("shell completion", func() {
		It("completes provider names for the first argument only", func() {
			cmd := authcmder.NewAuthCmd()
			completions, directive := cmd.ValidArgsFunction(cmd, []string{}, "")
			Expect(completions).To(ConsistOf("openai", "gemini", "serper", "qdrant"))
			Expect(directive).To(Equal(cobra.ShellCompDirectiveNoFileComp))

			completions, _ = cmd.ValidArgsFunction(cmd, []string{"openai"}, "")
			Expect(completions).To(BeNil())
		})
	})
})
