// Package text implements an extract.Extractor for plain text and markdown
// files.
package text

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/papercomputeco/folio/pkg/extract"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the file content verbatim. Content that is not valid UTF-8
// fails with extract.ErrExtraction.
func (e *Extractor) Extract(_ context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", extract.ErrExtraction, path, err)
	}

	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", extract.ErrExtraction, path)
	}

	return string(content), nil
}
