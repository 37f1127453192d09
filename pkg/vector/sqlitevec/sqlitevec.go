// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// DefaultDBPath keeps the collection in memory, matching the ephemeral
	// lifetime of an index.
	DefaultDBPath = ":memory:"

	DefaultCollection = "folio_document"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Driver implements vector.Driver with a vec0 virtual table for vectors and
// a regular table for payloads, joined on rowid = point ID.
type Driver struct {
	db      *sql.DB
	chunks  string
	vectors string
	mu      sync.RWMutex
	dim     uint
	logger  *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file. Defaults to ":memory:".
	DBPath string

	// Collection prefixes the driver's table names.
	Collection string
}

// NewDriver opens the database and verifies sqlite-vec is loaded. The
// collection's tables are created by Rebuild.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	dbPath := c.DBPath
	if dbPath == "" {
		dbPath = DefaultDBPath
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	collection = strings.ToLower(unsafeName.ReplaceAllString(collection, "_"))

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// Each connection to ":memory:" is its own database.
	if dbPath == DefaultDBPath {
		db.SetMaxOpenConns(1)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", dbPath,
		"collection", collection,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:      db,
		chunks:  collection + "_chunks",
		vectors: collection + "_vectors",
		logger:  logger,
	}, nil
}

func (d *Driver) Rebuild(ctx context.Context, dimension uint) error {
	if dimension == 0 {
		return fmt.Errorf("%w: collection dimension must be positive", vector.ErrDimensionMismatch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS ` + d.vectors,
		`DROP TABLE IF EXISTS ` + d.chunks,
		`CREATE TABLE ` + d.chunks + ` (
			id INTEGER PRIMARY KEY,
			source TEXT NOT NULL,
			text TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING vec0(embedding float[%d] distance_metric=cosine)`,
			d.vectors, dimension),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuilding collection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.dim = dimension
	d.logger.Debug("rebuilt sqlite-vec collection", "dimension", dimension)
	return nil
}

// Upsert writes points in one transaction. vec0 does not support UPDATE, so
// existing vectors are deleted and re-inserted.
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

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		blob, err := sqlite_vec.SerializeFloat32(p.Vector)
		if err != nil {
			return fmt.Errorf("serializing vector for point %d: %w", p.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO `+d.chunks+`(id, source, text) VALUES (?, ?, ?)`,
			int64(p.ID), p.Payload.Source, p.Payload.Text,
		); err != nil {
			return fmt.Errorf("writing payload for point %d: %w", p.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+d.vectors+` WHERE rowid = ?`, int64(p.ID),
		); err != nil {
			return fmt.Errorf("deleting old vector for point %d: %w", p.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+d.vectors+`(rowid, embedding) VALUES (?, ?)`,
			int64(p.ID), blob,
		); err != nil {
			return fmt.Errorf("inserting vector for point %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted points to sqlite-vec", "count", len(points))
	return nil
}

// Search ranks every stored vector by cosine distance to vec and returns the
// k nearest. Cosine distance is converted back to similarity as 1 - distance.
func (d *Driver) Search(ctx context.Context, vec []float32, k int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.dim == 0 {
		return nil, vector.ErrIndexNotReady
	}
	if err := vector.CheckQuery(vec, d.dim); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	// A vec0 KNN query cuts ties at the k-th row arbitrarily, so rank with
	// vec_distance_cosine and order equal distances by id.
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.id,
			c.source,
			c.text,
			vec_distance_cosine(v.embedding, ?) AS distance
		FROM `+d.vectors+` v
		INNER JOIN `+d.chunks+` c ON c.id = v.rowid
		ORDER BY distance, c.id
		LIMIT ?
	`, blob, vector.Limit(k))
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var (
			id       int64
			r        vector.QueryResult
			distance float64
		)
		if err := rows.Scan(&id, &r.Payload.Source, &r.Payload.Text, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		r.ID = uint64(id)
		r.Score = float32(1 - distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	if len(results) == 0 {
		return nil, vector.ErrIndexNotReady
	}

	vector.SortResults(results)
	return results, nil
}

// Count returns the number of stored points, zero before Rebuild.
func (d *Driver) Count(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.dim == 0 {
		return 0, nil
	}

	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+d.chunks).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return n, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*Driver)(nil)
