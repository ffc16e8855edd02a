package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/finance-insights/internal/logger"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBigQuery = "bigquery"
	DriverMemory   = "memory"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FININSIGHT_"

// Config is the process configuration shared by every command.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Import ImportConfig `yaml:"import"`
}

type StoreConfig struct {
	Driver   string         `yaml:"driver"`
	DSN      string         `yaml:"dsn"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
}

type BigQueryConfig struct {
	ProjectID string `yaml:"project_id"`
	DatasetID string `yaml:"dataset_id"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ImportConfig controls CSV ingestion and the import worker pool.
type ImportConfig struct {
	Source        string `yaml:"source"`
	DefaultUserID string `yaml:"default_user_id"`
	// LocalDir confines local CSV paths submitted over HTTP. Empty means
	// only gs:// sources are accepted there.
	LocalDir      string `yaml:"local_dir"`
	Workers       int    `yaml:"workers"`
	QueueSize     int    `yaml:"queue_size"`
}

// Default returns the configuration used when nothing else is set: a local
// sqlite file, port 8080, info logging.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "finance.db",
			BigQuery: BigQueryConfig{
				DatasetID: "finance",
			},
		},
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info", Format: "console"},
		Import: ImportConfig{Workers: 2, QueueSize: 100},
	}
}

// Load starts from Default, overlays the YAML file at path (if path is not
// empty) and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Load: reading config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("Load: parsing config file %q: %w", path, err)
	}
	return nil
}

// applyEnv overlays FININSIGHT_* variables. GOOGLE_CLOUD_PROJECT is used
// for the BigQuery project when FININSIGHT_BQ_PROJECT is not set.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("applyEnv: %s%s must be an integer: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	if v, ok := lookup("GOOGLE_CLOUD_PROJECT"); ok && c.Store.BigQuery.ProjectID == "" {
		c.Store.BigQuery.ProjectID = strings.TrimSpace(v)
	}

	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("BQ_PROJECT", &c.Store.BigQuery.ProjectID)
	str("BQ_DATASET", &c.Store.BigQuery.DatasetID)
	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("CSV_SOURCE", &c.Import.Source)
	str("DEFAULT_USER_ID", &c.Import.DefaultUserID)
	str("IMPORT_DIR", &c.Import.LocalDir)

	if err := num("IMPORT_WORKERS", &c.Import.Workers); err != nil {
		return err
	}
	return num("QUEUE_SIZE", &c.Import.QueueSize)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
	case DriverBigQuery:
		if c.Store.BigQuery.ProjectID == "" {
			errs = append(errs, errors.New("store.bigquery.project_id is required for bigquery"))
		}
		if c.Store.BigQuery.DatasetID == "" {
			errs = append(errs, errors.New("store.bigquery.dataset_id is required for bigquery"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %q", c.Server.Port))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Import.Workers < 1 {
		errs = append(errs, errors.New("import.workers must be at least 1"))
	}
	if c.Import.QueueSize < 1 {
		errs = append(errs, errors.New("import.queue_size must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
