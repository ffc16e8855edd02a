package infra

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-insights/internal/config"
	"github.com/dvloznov/finance-insights/internal/infra/bigquery"
	"github.com/dvloznov/finance-insights/internal/infra/memory"
	"github.com/dvloznov/finance-insights/internal/infra/sqlstore"
	"github.com/dvloznov/finance-insights/internal/ledger"
	"github.com/dvloznov/finance-insights/internal/logger"
)

// OpenStore connects the ledger backend selected by cfg and runs its
// one-time schema setup. Callers own the returned store and must Close it.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (ledger.Store, error) {
	log := logger.FromContext(ctx)

	var (
		store ledger.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		store = memory.NewStore()
	case config.DriverSQLite, config.DriverPostgres:
		store, err = sqlstore.Open(cfg.Driver, cfg.DSN)
	case config.DriverBigQuery:
		store, err = bigquery.NewTransactionRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
	default:
		return nil, fmt.Errorf("OpenStore: unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("OpenStore: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("OpenStore: initializing %s store: %w", cfg.Driver, err)
	}

	log.Info().Str("driver", cfg.Driver).Msg("transaction store ready")
	return store, nil
}
