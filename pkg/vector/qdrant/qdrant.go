// Package qdrant provides a vector.Driver backed by a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/folio/pkg/vector"
)

// Defaults applied by NewDriver.
const (
	DefaultCollectionName = "folio_document"
	DefaultPort           = 6334

	// APIKeyEnv is the environment variable holding the API key.
	APIKeyEnv = "QDRANT_API_KEY"
)

// Config configures the Qdrant driver.
type Config struct {
	// Target is "host:port" or a URL; an https scheme enables TLS.
	Target string

	CollectionName string
	APIKey         string
}

// Driver implements vector.Driver on a Qdrant collection.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger

	mu  sync.RWMutex
	dim uint
}

// NewDriver opens a gRPC client for the configured target.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	host, port, useTLS, err := parseTarget(c.Target)
	if err != nil {
		return nil, err
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	logger.Info("using Qdrant vector store",
		"host", host,
		"port", port,
		"collection", collection,
	)

	return &Driver{
		client:     client,
		collection: collection,
		logger:     logger,
	}, nil
}

// Rebuild deletes the collection and recreates it with cosine distance.
func (d *Driver) Rebuild(ctx context.Context, dimension uint) error {
	if dimension == 0 {
		return fmt.Errorf("%w: collection dimension must be positive", vector.ErrDimensionMismatch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}
	if exists {
		if err := d.client.DeleteCollection(ctx, d.collection); err != nil {
			return fmt.Errorf("deleting collection %q: %w", d.collection, err)
		}
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collection, err)
	}

	d.dim = dimension
	d.logger.Debug("rebuilt qdrant collection", "collection", d.collection, "dimension", dimension)
	return nil
}

// Upsert writes points and waits for the server to apply them.
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

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"source": p.Payload.Source,
				"text":   p.Payload.Text,
			}),
		}
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("upserted points to qdrant", "count", len(points))
	return nil
}

// Search runs a cosine query. Qdrant already reports cosine similarity as
// the score. Ties are ordered by ID within the returned page only.
func (d *Driver) Search(ctx context.Context, vec []float32, k int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.dim == 0 {
		return nil, vector.ErrIndexNotReady
	}
	if err := vector.CheckQuery(vec, d.dim); err != nil {
		return nil, err
	}

	hits, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(vector.Limit(k))),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	if len(hits) == 0 {
		return nil, vector.ErrIndexNotReady
	}

	results := make([]vector.QueryResult, len(hits))
	for i, h := range hits {
		results[i] = vector.QueryResult{
			ID: h.GetId().GetNum(),
			Payload: vector.Payload{
				Source: h.GetPayload()["source"].GetStringValue(),
				Text:   h.GetPayload()["text"].GetStringValue(),
			},
			Score: h.GetScore(),
		}
	}

	vector.SortResults(results)
	return results, nil
}

// Count returns the exact number of points, zero before Rebuild.
func (d *Driver) Count(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.dim == 0 {
		return 0, nil
	}

	n, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

// parseTarget accepts "host", "host:port" or a URL.
func parseTarget(target string) (string, int, bool, error) {
	if target == "" {
		return "localhost", DefaultPort, false, nil
	}

	useTLS := false
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", 0, false, fmt.Errorf("parsing qdrant target %q: %w", target, err)
		}
		useTLS = u.Scheme == "https"
		target = u.Host
	}

	host, rawPort, err := net.SplitHostPort(target)
	if err != nil {
		return target, DefaultPort, useTLS, nil
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return "", 0, false, fmt.Errorf("parsing qdrant port %q: %w", rawPort, err)
	}
	return host, port, useTLS, nil
}

var _ vector.Driver = (*Driver)(nil)
