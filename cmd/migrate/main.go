package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/finance-insights/internal/config"
	"github.com/dvloznov/finance-insights/internal/infra"
	"github.com/dvloznov/finance-insights/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")
		driver     = flag.String("driver", "", "store driver: sqlite, postgres, bigquery or memory (overrides config)")
		dsn        = flag.String("dsn", "", "sqlite path or postgres DSN (overrides config)")
		project    = flag.String("project", "", "GCP project ID for the bigquery driver (overrides config)")
		dataset    = flag.String("dataset", "", "BigQuery dataset ID (overrides config)")
	)
	flag.Parse()

	bootLog := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyOverrides(&cfg, *driver, *dsn, *project, *dataset)

	log, err := logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to configure logger")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	fmt.Printf("Transaction store schema is up to date (%s).\n", cfg.Store.Driver)
}

// applyOverrides replaces config values with the non-empty flag values.
func applyOverrides(cfg *config.Config, driver, dsn, project, dataset string) {
	if driver != "" {
		cfg.Store.Driver = driver
	}
	if dsn != "" {
		cfg.Store.DSN = dsn
	}
	if project != "" {
		cfg.Store.BigQuery.ProjectID = project
	}
	if dataset != "" {
		cfg.Store.BigQuery.DatasetID = dataset
	}
}

// run validates the configuration and creates the store schema. Schema
// creation is idempotent, so running it against an up-to-date store is a
// no-op.
func run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return store.Close()
}
