// Package embeddings defines the text embedding contract shared by indexing
// and querying, plus helpers for batching.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding is returned when a provider cannot embed its input.
var ErrEmbedding = errors.New("embedding failed")

// Embedder maps text to fixed-dimension dense vectors. The same Embedder
// must be used for indexing and querying so vectors are comparable.
type Embedder interface {
	// Embed converts one text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts into vectors, in input order. Either every
	// text is embedded or an error is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// ProgressFunc reports how many of total texts have been embedded.
type ProgressFunc func(done, total int)

// EmbedAll embeds texts in batches of batchSize (all at once when
// batchSize <= 0). Like EmbedBatch it is all-or-nothing.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int, progress ProgressFunc) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		batch, err := e.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrEmbedding, len(batch), end-start)
		}

		vectors = append(vectors, batch...)
		if progress != nil {
			progress(len(vectors), len(texts))
		}
	}

	return vectors, nil
}

// Dimension returns the shared length of vectors, failing with ErrEmbedding
// when the slice is empty or lengths disagree.
func Dimension(vectors [][]float32) (uint, error) {
	if len(vectors) == 0 {
		return 0, fmt.Errorf("%w: no vectors", ErrEmbedding)
	}

	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: provider returned an empty vector", ErrEmbedding)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrEmbedding, i, len(v), dim)
		}
	}

	return uint(dim), nil
}
