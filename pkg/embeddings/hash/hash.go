// Package hash implements a local, deterministic embeddings.Embedder based
// on feature hashing. It needs no model server, which makes it the embedder
// of choice for offline use and tests. Similarity reflects shared words and
// word fragments, not meaning.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/papercomputeco/folio/pkg/embeddings"
)

// DefaultDimensions is used when EmbedderConfig.Dimensions is zero.
const DefaultDimensions = 512

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// EmbedderConfig configures the hash embedder.
type EmbedderConfig struct {
	Dimensions uint
}

// Embedder maps text to fixed-size vectors by hashing words and trigrams.
type Embedder struct {
	dims int
}

// NewEmbedder returns an Embedder with the configured dimensions.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	dims := int(cfg.Dimensions)
	if dims == 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Embed hashes each lowercased word and its character trigrams into a signed
// bucket, then L2-normalizes. Text with no words yields the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	acc := make([]float64, e.dims)

	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		e.add(acc, "w:"+tok, 1.0)

		padded := []rune("^" + tok + "$")
		for i := 0; i+3 <= len(padded); i++ {
			e.add(acc, "g:"+string(padded[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dims)
	if norm == 0 {
		return out, nil
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

func (e *Embedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(len(acc)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[idx] += weight
}

var _ embeddings.Embedder = (*Embedder)(nil)
