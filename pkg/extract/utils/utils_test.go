package extractutils_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/extract"
	"github.com/papercomputeco/folio/pkg/extract/pdf"
	"github.com/papercomputeco/folio/pkg/extract/text"
	extractutils "github.com/papercomputeco/folio/pkg/extract/utils"
	"github.com/papercomputeco/folio/pkg/logger"
)

var _ = Describe("NewExtractor", func() {
	It("picks the pdf extractor for .pdf", func() {
		e, err := extractutils.NewExtractor("/tmp/Report.PDF", logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&pdf.Extractor{}))
	})

	It("picks the text extractor for .txt and .md", func() {
		for _, p := range []string{"a.txt", "b.md"} {
			e, err := extractutils.NewExtractor(p, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(e).To(BeAssignableToTypeOf(&text.Extractor{}))
		}
	})

	It("rejects unsupported types", func() {
		_, err := extractutils.NewExtractor("slides.pptx", logger.Nop())
		Expect(err).To(MatchError(extract.ErrExtraction))
	})
})

var _ = Describe("ByExtension", func() {
	It("dispatches per document", func() {
		path := filepath.Join(GinkgoT().TempDir(), "readme.txt")
		Expect(os.WriteFile(path, []byte("hello"), 0o600)).To(Succeed())

		got, err := extractutils.NewByExtension(logger.Nop()).Extract(context.Background(), path)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal("hello"))
	})
})
