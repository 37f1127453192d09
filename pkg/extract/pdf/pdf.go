// Package pdf implements an extract.Extractor for PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gopdf "github.com/ledongthuc/pdf"

	"github.com/papercomputeco/folio/pkg/extract"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n"

// Extractor reads PDF files with ledongthuc/pdf.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the plain text of every page, in page order, joined by
// PageSeparator. Pages without a content stream contribute an empty string.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", extract.ErrExtraction, path, err)
	}

	reader, err := newReader(content)
	if err != nil {
		return "", fmt.Errorf("%w: parsing %s: %v", extract.ErrExtraction, path, err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := pageText(reader.Page(i))
		if err != nil {
			return "", fmt.Errorf("%w: page %d of %s: %v", extract.ErrExtraction, i, path, err)
		}
		pages = append(pages, text)
	}

	e.logger.Debug("extracted pdf",
		"path", path,
		"pages", numPages,
	)

	return strings.Join(pages, PageSeparator), nil
}

// newReader converts the panics ledongthuc/pdf raises on malformed input
// into errors.
func newReader(content []byte) (reader *gopdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	return gopdf.NewReader(bytes.NewReader(content), int64(len(content)))
}

func pageText(page gopdf.Page) (string, error) {
	if page.V.IsNull() || page.V.Key("Contents").IsNull() {
		return "", nil
	}

	// nil fonts lets the reader resolve each font's own encoding.
	return page.GetPlainText(nil)
}
