// Package extract turns source documents into a flat text stream.
package extract

import (
	"context"
	"errors"
)

// ErrExtraction is returned when a document cannot be opened or parsed.
var ErrExtraction = errors.New("extraction failed")

// Extractor reads the text content of a document at a filesystem path.
type Extractor interface {
	// Extract returns the document's full text. Multi-page formats are
	// flattened in page order, one newline between pages.
	Extract(ctx context.Context, path string) (string, error)
}
