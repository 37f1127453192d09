package querycmder_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	querycmder "github.com/papercomputeco/folio/cmd/folio/query"
)

const policy = "Refunds are issued within thirty days.\n\nShipping takes five business days.\n\nDamaged items are replaced."

var _ = Describe("NewQueryCmd", func() {
	It("requires a file and a question", func() {
		cmd := querycmder.NewQueryCmd()
		Expect(cmd.Args(cmd, []string{"a.pdf"})).To(HaveOccurred())
		Expect(cmd.Args(cmd, []string{"a.pdf", "why?"})).To(Succeed())
	})

	It("has --raw and --top-k flags", func() {
		cmd := querycmder.NewQueryCmd()
		Expect(cmd.Flags().Lookup("raw")).NotTo(BeNil())
		Expect(cmd.Flags().ShorthandLookup("k")).NotTo(BeNil())
	})
})

var _ = Describe("Query command execution", func() {
	var (
		tmpDir  string
		docPath string
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		Expect(os.MkdirAll(filepath.Join(tmpDir, ".folio"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(os.Chdir, origDir)

		docPath = filepath.Join(tmpDir, "policy.txt")
		Expect(os.WriteFile(docPath, []byte(policy), 0o644)).To(Succeed())
	})

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := querycmder.NewQueryCmd()
		cmd.Flags().Bool("debug", false, "")
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--embedding-provider", "hash", "--chunk-size", "60", "--chunk-overlap", "0"))
		err := cmd.Execute()
		return out.String(), err
	}

	It("prints ranked passages", func() {
		out, err := run(docPath, "refunds", "--top-k", "2")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`Passages for: "refunds"`))
		Expect(out).To(ContainSubstring("1. policy.txt"))
		Expect(out).To(ContainSubstring("2. policy.txt"))
		Expect(out).NotTo(ContainSubstring("3. policy.txt"))
	})

	It("prints the joined string with --raw", func() {
		out, err := run(docPath, "refunds", "--raw")
		Expect(err).NotTo(HaveOccurred())

		passages := strings.Split(strings.TrimSuffix(out, "\n"), "\n___\n")
		Expect(passages).To(ConsistOf(
			"Refunds are issued within thirty days.",
			"Shipping takes five business days.",
			"Damaged items are replaced.",
		))
	})

	It("fails when the document has no text", func() {
		blank := filepath.Join(tmpDir, "blank.txt")
		Expect(os.WriteFile(blank, []byte("\n\n"), 0o644)).To(Succeed())

		_, err := run(blank, "refunds")
		Expect(err).To(MatchError(ContainSubstring("indexing")))
	})
})
