package vector

import "errors"

var (
	// ErrIndexNotReady is returned when searching a collection that has not
	// been built or holds no points.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrDimensionMismatch is returned when a vector's length differs from
	// the collection's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
