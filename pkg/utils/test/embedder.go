package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/embeddings/hash"
)

// MockEmbedder returns fixed embeddings for known texts and a deterministic
// hashed embedding for everything else.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn makes any call whose input contains this substring fail with
	// embeddings.ErrEmbedding.
	FailOn string

	mu         sync.Mutex
	calls      int
	batchCalls int
	fallback   *hash.Embedder
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		fallback:   hash.NewEmbedder(hash.EmbedderConfig{Dimensions: 64}),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	return m.embed(ctx, text)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

// Calls returns the number of Embed calls.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// BatchCalls returns the number of EmbedBatch calls.
func (m *MockEmbedder) BatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

func (m *MockEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	if m.FailOn != "" && strings.Contains(text, m.FailOn) {
		return nil, fmt.Errorf("%w: mock failure for %q", embeddings.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	return m.fallback.Embed(ctx, text)
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)
