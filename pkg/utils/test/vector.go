package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/memory"
)

// MockVectorDriver wraps the in-memory driver, recording calls and
// optionally failing them.
type MockVectorDriver struct {
	*memory.Driver

	// RebuildErr, UpsertErr and SearchErr are returned by the matching call
	// when set.
	RebuildErr error
	UpsertErr  error
	SearchErr  error

	mu       sync.Mutex
	rebuilds []uint
	upserted int
	searches int
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{Driver: memory.NewDriver(logger.Nop())}
}

func (m *MockVectorDriver) Rebuild(ctx context.Context, dimension uint) error {
	m.mu.Lock()
	m.rebuilds = append(m.rebuilds, dimension)
	err := m.RebuildErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.Driver.Rebuild(ctx, dimension)
}

func (m *MockVectorDriver) Upsert(ctx context.Context, points []vector.Point) error {
	m.mu.Lock()
	m.upserted += len(points)
	err := m.UpsertErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.Driver.Upsert(ctx, points)
}

func (m *MockVectorDriver) Search(ctx context.Context, vec []float32, k int) ([]vector.QueryResult, error) {
	m.mu.Lock()
	m.searches++
	err := m.SearchErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.Driver.Search(ctx, vec, k)
}

// Rebuilds returns the dimensions passed to Rebuild, in order.
func (m *MockVectorDriver) Rebuilds() []uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint(nil), m.rebuilds...)
}

// Upserted returns the number of points passed to Upsert.
func (m *MockVectorDriver) Upserted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserted
}

// Searches returns the number of Search calls.
func (m *MockVectorDriver) Searches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches
}

var _ vector.Driver = (*MockVectorDriver)(nil)
