package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/finance-insights/internal/config"
	"github.com/dvloznov/finance-insights/internal/infra"
	"github.com/dvloznov/finance-insights/internal/ingest"
	"github.com/dvloznov/finance-insights/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")
	source := flag.String("source", "", "CSV path or GCS URI (e.g. gs://bucket/transactions.csv)")
	flag.Parse()

	bootLog := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *source != "" {
		cfg.Import.Source = *source
	}
	if err := cfg.Validate(); err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log, err := logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to configure logger")
	}

	if cfg.Import.Source == "" {
		log.Fatal().Msg("Error: --source or " + config.EnvPrefix + "CSV_SOURCE is required")
	}

	// Create context with timeout so the command doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open transaction store")
	}
	defer store.Close()

	sources := ingest.NewRouter()
	defer sources.Close()

	log.Info().Str("source", cfg.Import.Source).Msg("Starting import")

	importer := ingest.NewImporter(sources, store, ingest.ParseOptions{DefaultUserID: cfg.Import.DefaultUserID})
	res, err := importer.Import(ctx, cfg.Import.Source)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Import completed: %d transactions for %d users.\n", res.Rows, res.Users)
}
