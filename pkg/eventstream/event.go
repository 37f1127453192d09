package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentIndexed is emitted after a document has been indexed
	// and the collection is ready for queries.
	EventTypeDocumentIndexed = "folio.document.indexed"
)

// DocumentIndexedEvent is a transport-neutral event payload for an indexed
// document.
type DocumentIndexedEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Document      DocumentMeta `json:"document"`
	Index         IndexMeta    `json:"index"`
}

// DocumentMeta describes the indexed document.
type DocumentMeta struct {
	Source     string `json:"source"`
	Characters int    `json:"characters"`
	Chunks     int    `json:"chunks"`
}

// IndexMeta captures how the collection was built.
type IndexMeta struct {
	VectorStore    string    `json:"vector_store,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Dimension      uint      `json:"dimension"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	DurationMs     int64     `json:"duration_ms"`
}

// NewDocumentIndexedEvent stamps a new event with an ID and emit time.
func NewDocumentIndexedEvent(doc DocumentMeta, index IndexMeta) *DocumentIndexedEvent {
	if index.DurationMs == 0 && !index.CompletedAt.IsZero() {
		index.DurationMs = index.CompletedAt.Sub(index.StartedAt).Milliseconds()
	}

	return &DocumentIndexedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeDocumentIndexed,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Document:      doc,
		Index:         index,
	}
}
