// Package extractutils picks an extract.Extractor for a document path.
package extractutils

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/folio/pkg/extract"
	"github.com/papercomputeco/folio/pkg/extract/pdf"
	"github.com/papercomputeco/folio/pkg/extract/text"
)

// SupportedExtensions lists the file extensions NewExtractor understands.
var SupportedExtensions = []string{".pdf", ".txt", ".md"}

// NewExtractor returns the extractor matching the extension of path.
func NewExtractor(path string, logger *slog.Logger) (extract.Extractor, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return pdf.NewExtractor(logger), nil
	case ".txt", ".md", ".markdown":
		return text.NewExtractor(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported document type %q (supported: %s)",
			extract.ErrExtraction, ext, strings.Join(SupportedExtensions, ", "))
	}
}

// ByExtension is an extract.Extractor that dispatches on the path of each
// document it is given.
type ByExtension struct {
	logger *slog.Logger
}

func NewByExtension(logger *slog.Logger) *ByExtension {
	return &ByExtension{logger: logger}
}

func (b *ByExtension) Extract(ctx context.Context, path string) (string, error) {
	e, err := NewExtractor(path, b.logger)
	if err != nil {
		return "", err
	}
	return e.Extract(ctx, path)
}
