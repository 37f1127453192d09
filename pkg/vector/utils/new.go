// Package vectorutils builds a vector.Driver from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/chroma"
	"github.com/papercomputeco/folio/pkg/vector/memory"
	"github.com/papercomputeco/folio/pkg/vector/postgres"
	"github.com/papercomputeco/folio/pkg/vector/qdrant"
	"github.com/papercomputeco/folio/pkg/vector/sqlitevec"
)

const (
	ProviderMemory   = "memory"
	ProviderSQLite   = "sqlite"
	ProviderQdrant   = "qdrant"
	ProviderChroma   = "chroma"
	ProviderPostgres = "postgres"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL is the server URL, database path or connection string,
	// depending on the provider.
	TargetURL  string
	Collection string
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case ProviderMemory, "":
		return memory.NewDriver(o.Logger), nil
	case ProviderSQLite:
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Collection: o.Collection,
		}, o.Logger)
	case ProviderQdrant:
		return qdrant.NewDriver(qdrant.Config{
			Target:         o.TargetURL,
			CollectionName: o.Collection,
			APIKey:         os.Getenv(qdrant.APIKeyEnv),
		}, o.Logger)
	case ProviderChroma:
		return chroma.NewDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
		}, o.Logger)
	case ProviderPostgres:
		return postgres.NewDriver(ctx, postgres.Config{
			ConnString: o.TargetURL,
			Table:      o.Collection,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
