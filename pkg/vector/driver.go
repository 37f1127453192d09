// Package vector provides the similarity-searchable collection that backs
// retrieval, and the backends that implement it.
package vector

import "context"

// DefaultTopK is the number of results returned when a search asks for k <= 0.
const DefaultTopK = 5

// Payload is the non-vector data stored alongside each point.
type Payload struct {
	// Source is the base name of the document the chunk came from.
	Source string `json:"source"`

	// Text is the chunk text.
	Text string `json:"text"`
}

// Point is the unit stored in a collection.
type Point struct {
	// ID is the chunk's position in the document, 0..N-1.
	ID uint64

	Vector  []float32
	Payload Payload
}

// QueryResult is a search hit with its cosine similarity (higher = closer).
type QueryResult struct {
	ID      uint64  `json:"id"`
	Payload Payload `json:"payload"`
	Score   float32 `json:"score"`
}

// Driver owns a single collection and its lifecycle. A collection starts out
// uninitialized, is (re)created wholesale by Rebuild and filled by Upsert.
type Driver interface {
	// Rebuild discards any existing collection and creates an empty one
	// for vectors of the given dimension, compared by cosine similarity.
	Rebuild(ctx context.Context, dimension uint) error

	// Upsert inserts or overwrites points by ID. Every vector must match
	// the collection's dimension or ErrDimensionMismatch is returned.
	Upsert(ctx context.Context, points []Point) error

	// Search returns the k points nearest to vec, most similar first, with
	// ties broken by ascending ID. It returns ErrIndexNotReady when the
	// collection is uninitialized or empty.
	Search(ctx context.Context, vec []float32, k int) ([]QueryResult, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
