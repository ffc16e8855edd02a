package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/finance-insights/internal/config"
)

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	applyOverrides(&cfg, "bigquery", "", "my-project", "")

	if cfg.Store.Driver != config.DriverBigQuery {
		t.Errorf("driver = %q, want bigquery", cfg.Store.Driver)
	}
	if cfg.Store.DSN != "finance.db" {
		t.Errorf("dsn = %q, empty flag should keep the config value", cfg.Store.DSN)
	}
	if cfg.Store.BigQuery.ProjectID != "my-project" || cfg.Store.BigQuery.DatasetID != "finance" {
		t.Errorf("bigquery = %+v", cfg.Store.BigQuery)
	}
}

func TestRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	tests := []struct {
		name    string
		driver  string
		dsn     string
		wantErr bool
	}{
		{name: "memory", driver: config.DriverMemory},
		{name: "sqlite", driver: config.DriverSQLite, dsn: dbPath},
		{name: "sqlite twice is a no-op", driver: config.DriverSQLite, dsn: dbPath},
		{name: "unknown driver", driver: "mongo", wantErr: true},
		{name: "postgres without dsn", driver: config.DriverPostgres, dsn: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.Driver = tt.driver
			cfg.Store.DSN = tt.dsn

			err := run(context.Background(), cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("sqlite file not created: %v", err)
	}
}
