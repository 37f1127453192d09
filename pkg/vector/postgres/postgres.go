// Package postgres provides a vector.Driver backed by PostgreSQL with the
// pgvector extension.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/papercomputeco/folio/pkg/vector"
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "folio_document"

// Config configures the PostgreSQL driver.
type Config struct {
	// ConnString is a libpq-style URL or key/value connection string.
	ConnString string

	// Table holds the collection. It is dropped and recreated by Rebuild.
	Table string
}

// Driver implements vector.Driver on a pgvector table.
type Driver struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger

	mu  sync.RWMutex
	dim uint
}

// NewDriver connects to PostgreSQL and registers the pgvector types.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.ConnString == "" {
		return nil, fmt.Errorf("postgres connection string is required")
	}

	table := c.Table
	if table == "" {
		table = DefaultTable
	}

	poolCfg, err := pgxpool.ParseConfig(c.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	// The vector type must exist before it can be registered on a connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
			return fmt.Errorf("enabling pgvector: %w", err)
		}
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	logger.Info("using postgres vector store", "table", table)

	return &Driver{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: logger,
	}, nil
}

// Rebuild drops the table and recreates it for vectors of the given dimension.
func (d *Driver) Rebuild(ctx context.Context, dimension uint) error {
	if dimension == 0 {
		return fmt.Errorf("%w: collection dimension must be positive", vector.ErrDimensionMismatch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS `+d.table); err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}

	create := fmt.Sprintf(`CREATE TABLE %s (
		id BIGINT PRIMARY KEY,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	)`, d.table, dimension)
	if _, err := tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.dim = dimension
	d.logger.Debug("rebuilt postgres collection", "dimension", dimension)
	return nil
}

// Upsert inserts points, replacing any with the same id.
func (d *Driver) Upsert(ctx context.Context, points []vector.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dim == 0 {
		return fmt.Errorf("%w: collection has not been created", vector.ErrIndexNotReady)
	}
	if err := vector.CheckDimensions(points, d.dim); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	query := `INSERT INTO ` + d.table + ` (id, source, text, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET source = EXCLUDED.source, text = EXCLUDED.text, embedding = EXCLUDED.embedding`

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(query, int64(p.ID), p.Payload.Source, p.Payload.Text, pgvector.NewVector(p.Vector))
	}

	if err := d.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("upserted points to postgres", "count", len(points))
	return nil
}

// Search orders by cosine distance (<=>) then id.
func (d *Driver) Search(ctx context.Context, vec []float32, k int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.dim == 0 {
		return nil, vector.ErrIndexNotReady
	}
	if err := vector.CheckQuery(vec, d.dim); err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, source, text, 1 - (embedding <=> $1) AS score
		FROM `+d.table+`
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, pgvector.NewVector(vec), vector.Limit(k))
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var (
			id    int64
			r     vector.QueryResult
			score float64
		)
		if err := rows.Scan(&id, &r.Payload.Source, &r.Payload.Text, &score); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		r.ID = uint64(id)
		r.Score = float32(score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	if len(results) == 0 {
		return nil, vector.ErrIndexNotReady
	}
	return results, nil
}

// Count returns the number of rows, zero before Rebuild.
func (d *Driver) Count(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.dim == 0 {
		return 0, nil
	}

	var n int
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+d.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}

var _ vector.Driver = (*Driver)(nil)
