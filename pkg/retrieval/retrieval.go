// Package retrieval is the single entry point for indexing a document and
// answering queries against it. It wires an extractor, a chunker, an
// embedder and a vector driver together and owns the ready state of the
// index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/eventstream"
	"github.com/papercomputeco/folio/pkg/eventstream/nop"
	"github.com/papercomputeco/folio/pkg/extract"
	"github.com/papercomputeco/folio/pkg/tool"
	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// ToolName is the name the retriever registers under as a tool.
	ToolName = "document_search"

	tracerName = "github.com/papercomputeco/folio/pkg/retrieval"
)

// Config holds every collaborator of a Retriever. Extractor, Embedder and
// Driver are required.
type Config struct {
	Extractor extract.Extractor
	Splitter  *chunker.Splitter
	Embedder  embeddings.Embedder
	Driver    vector.Driver

	// Publisher receives a DocumentIndexedEvent after each successful
	// index. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// TopK is used by Run. Defaults to vector.DefaultTopK.
	TopK int

	// BatchSize bounds texts per embedding request; <= 0 sends one batch.
	BatchSize int

	// VectorStore and EmbeddingModel label published events.
	VectorStore    string
	EmbeddingModel string

	Tracer trace.Tracer
	Logger *slog.Logger
}

// IndexResult summarizes a successful IndexDocument call.
type IndexResult struct {
	Source     string        `json:"source"`
	Characters int           `json:"characters"`
	Chunks     int           `json:"chunks"`
	Dimension  uint          `json:"dimension"`
	Duration   time.Duration `json:"duration"`
}

// Status is a snapshot of the index state.
type Status struct {
	Ready     bool      `json:"ready"`
	Source    string    `json:"source,omitempty"`
	Chunks    int       `json:"chunks"`
	Dimension uint      `json:"dimension,omitempty"`
	IndexedAt time.Time `json:"indexed_at,omitzero"`
}

// Retriever indexes one document at a time and answers queries against it.
type Retriever struct {
	extractor extract.Extractor
	splitter  *chunker.Splitter
	embedder  embeddings.Embedder
	driver    vector.Driver
	publisher eventstream.Publisher
	topK      int
	batchSize int
	labels    eventstream.IndexMeta
	tracer    trace.Tracer
	logger    *slog.Logger

	// indexMu serializes IndexDocument calls.
	indexMu sync.Mutex

	// mu guards status and excludes searches during rebuild+upsert.
	mu     sync.RWMutex
	status Status
}

// New returns a Retriever, filling unset optional collaborators with defaults.
func New(c Config) (*Retriever, error) {
	switch {
	case c.Extractor == nil:
		return nil, errors.New("retrieval: extractor is required")
	case c.Embedder == nil:
		return nil, errors.New("retrieval: embedder is required")
	case c.Driver == nil:
		return nil, errors.New("retrieval: vector driver is required")
	}

	splitter := c.Splitter
	if splitter == nil {
		splitter = chunker.NewDefault()
	}

	publisher := c.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	tracer := c.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Retriever{
		extractor: c.Extractor,
		splitter:  splitter,
		embedder:  c.Embedder,
		driver:    c.Driver,
		publisher: publisher,
		topK:      vector.Limit(c.TopK),
		batchSize: c.BatchSize,
		labels: eventstream.IndexMeta{
			VectorStore:    c.VectorStore,
			EmbeddingModel: c.EmbeddingModel,
		},
		tracer: tracer,
		logger: logger,
	}, nil
}

type indexOptions struct {
	progress embeddings.ProgressFunc
}

// IndexOption customizes a single IndexDocument call.
type IndexOption func(*indexOptions)

// WithProgress reports embedding progress as chunks are embedded.
func WithProgress(fn embeddings.ProgressFunc) IndexOption {
	return func(o *indexOptions) {
		o.progress = fn
	}
}

// IndexDocument extracts, chunks and embeds the document at path, then
// replaces the collection with its chunks. On any failure the retriever is
// left not ready and queries fail with vector.ErrIndexNotReady until a
// later call succeeds.
func (r *Retriever) IndexDocument(ctx context.Context, path string, opts ...IndexOption) (*IndexResult, error) {
	var o indexOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	source := filepath.Base(path)
	started := time.Now()

	ctx, span := r.tracer.Start(ctx, "folio.retrieval.index",
		trace.WithAttributes(attribute.String("folio.source", source)))
	defer span.End()

	result, err := r.index(ctx, path, source, o)
	if err != nil {
		r.markNotReady()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("indexing failed", "source", source, "error", err)
		return nil, err
	}

	result.Duration = time.Since(started)
	span.SetAttributes(
		attribute.Int("folio.chunks", result.Chunks),
		attribute.Int("folio.dimension", int(result.Dimension)),
	)

	r.logger.Info("document indexed",
		"source", source,
		"chunks", result.Chunks,
		"dimension", result.Dimension,
		"duration", result.Duration,
	)

	r.publish(ctx, result, started)
	return result, nil
}

func (r *Retriever) index(ctx context.Context, path, source string, o indexOptions) (*IndexResult, error) {
	text, err := r.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	chunks := r.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text found in %s", extract.ErrExtraction, source)
	}
	characters := utf8.RuneCountInString(text)
	r.logger.Debug("document chunked", "source", source, "characters", characters, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embeddings.EmbedAll(ctx, r.embedder, texts, r.batchSize, o.progress)
	if err != nil {
		return nil, err
	}

	dim, err := embeddings.Dimension(vectors)
	if err != nil {
		return nil, err
	}

	points := make([]vector.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vector.Point{
			ID:     uint64(i),
			Vector: vectors[i],
			Payload: vector.Payload{
				Source: source,
				Text:   c.Text,
			},
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = Status{}

	if err := r.driver.Rebuild(ctx, dim); err != nil {
		return nil, fmt.Errorf("rebuilding collection: %w", err)
	}
	if err := r.driver.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("upserting chunks: %w", err)
	}

	r.status = Status{
		Ready:     true,
		Source:    source,
		Chunks:    len(points),
		Dimension: dim,
		IndexedAt: time.Now().UTC(),
	}

	return &IndexResult{
		Source:     source,
		Characters: characters,
		Chunks:     len(points),
		Dimension:  dim,
	}, nil
}

func (r *Retriever) markNotReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = Status{}
}

func (r *Retriever) publish(ctx context.Context, result *IndexResult, started time.Time) {
	labels := r.labels
	labels.Dimension = result.Dimension
	labels.StartedAt = started.UTC()
	labels.CompletedAt = started.Add(result.Duration).UTC()

	event := eventstream.NewDocumentIndexedEvent(eventstream.DocumentMeta{
		Source:     result.Source,
		Characters: result.Characters,
		Chunks:     result.Chunks,
	}, labels)

	if err := r.publisher.PublishDocumentIndexed(ctx, event); err != nil {
		r.logger.Warn("failed to publish document event",
			"event_id", event.EventID,
			"error", err,
		)
	}
}

// Search embeds text and returns the k nearest chunks, most relevant first.
// It fails with vector.ErrIndexNotReady until a document has been indexed.
func (r *Retriever) Search(ctx context.Context, text string, k int) ([]vector.QueryResult, error) {
	ctx, span := r.tracer.Start(ctx, "folio.retrieval.query",
		trace.WithAttributes(attribute.Int("folio.k", vector.Limit(k))))
	defer span.End()

	results, err := r.search(ctx, text, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("folio.results", len(results)))
	return results, nil
}

func (r *Retriever) search(ctx context.Context, text string, k int) ([]vector.QueryResult, error) {
	if !r.Status().Ready {
		return nil, vector.ErrIndexNotReady
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// An index attempt may have failed while the query was embedded.
	if !r.status.Ready {
		return nil, vector.ErrIndexNotReady
	}
	return r.driver.Search(ctx, vec, k)
}

// Query returns the texts of the k nearest chunks joined by
// tool.ResultSeparator, most relevant first.
func (r *Retriever) Query(ctx context.Context, text string, k int) (string, error) {
	results, err := r.Search(ctx, text, k)
	if err != nil {
		return "", err
	}
	return JoinResults(results), nil
}

// JoinResults joins result texts in rank order.
func JoinResults(results []vector.QueryResult) string {
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Payload.Text
	}
	return strings.Join(texts, tool.ResultSeparator)
}

// Status returns a snapshot of the index state.
func (r *Retriever) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Name returns ToolName.
func (r *Retriever) Name() string {
	return ToolName
}

// Description describes the tool to a model.
func (r *Retriever) Description() string {
	return "Search the uploaded document for passages relevant to a question."
}

// Run queries with the configured TopK.
func (r *Retriever) Run(ctx context.Context, query string) (string, error) {
	return r.Query(ctx, query, r.topK)
}

var _ tool.Tool = (*Retriever)(nil)
