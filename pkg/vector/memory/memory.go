// Package memory provides an in-process vector.Driver that searches by brute
// force. The collection lives only as long as the process.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/papercomputeco/folio/pkg/vector"
)

// Driver is a vector.Driver holding points in a map.
type Driver struct {
	mu     sync.RWMutex
	dim    uint
	ready  bool
	points map[uint64]vector.Point
	logger *slog.Logger
}

// NewDriver returns an empty driver. Rebuild must be called before Upsert.
func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{logger: logger}
}

// Rebuild drops every point and fixes the collection dimension.
func (d *Driver) Rebuild(_ context.Context, dimension uint) error {
	if dimension == 0 {
		return fmt.Errorf("%w: collection dimension must be positive", vector.ErrDimensionMismatch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.dim = dimension
	d.points = make(map[uint64]vector.Point)
	d.ready = true

	d.logger.Debug("rebuilt in-memory collection", "dimension", dimension)
	return nil
}

// Upsert stores points by id, overwriting existing ones.
func (d *Driver) Upsert(_ context.Context, points []vector.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return fmt.Errorf("%w: collection has not been created", vector.ErrIndexNotReady)
	}
	if err := vector.CheckDimensions(points, d.dim); err != nil {
		return err
	}

	for _, p := range points {
		p.Vector = slices.Clone(p.Vector)
		d.points[p.ID] = p
	}

	d.logger.Debug("upserted points", "count", len(points), "total", len(d.points))
	return nil
}

// Search scores every point by cosine similarity and returns the k best.
func (d *Driver) Search(ctx context.Context, vec []float32, k int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.ready || len(d.points) == 0 {
		return nil, vector.ErrIndexNotReady
	}
	if err := vector.CheckQuery(vec, d.dim); err != nil {
		return nil, err
	}

	results := make([]vector.QueryResult, 0, len(d.points))
	for _, p := range d.points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, vector.QueryResult{
			ID:      p.ID,
			Payload: p.Payload,
			Score:   vector.CosineSimilarity(vec, p.Vector),
		})
	}

	vector.SortResults(results)
	if k = vector.Limit(k); len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored points.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.points), nil
}

// Close drops every point.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.points = nil
	d.ready = false
	return nil
}

var _ vector.Driver = (*Driver)(nil)
