package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-insights/internal/config"
	"github.com/dvloznov/finance-insights/internal/infra"
	"github.com/dvloznov/finance-insights/internal/ingest"
	"github.com/dvloznov/finance-insights/internal/insights"
	"github.com/dvloznov/finance-insights/internal/ledger"
	"github.com/dvloznov/finance-insights/internal/logger"
	"github.com/dvloznov/finance-insights/internal/report"
	"github.com/dvloznov/finance-insights/internal/tools"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		runAdd(log)
	case "summary":
		runTool(log, "summary", tools.GetSpendingSummary)
	case "personality":
		runTool(log, "personality", tools.AnalyzeFinancialPersonality)
	case "forecast":
		runTool(log, "forecast", tools.ForecastNextMonth)
	case "risk":
		runTool(log, "risk", tools.RiskAlert)
	case "recent":
		runRecent(log)
	case "import":
		runImport(log)
	case "upload":
		runUpload(log)
	case "chart":
		runChart(log)
	case "tools":
		runListTools()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  add          Record a transaction")
	fmt.Println("  summary      Income, expenses and spending by category")
	fmt.Println("  personality  Classify a user's financial personality")
	fmt.Println("  forecast     Project next month's net cash flow")
	fmt.Println("  risk         Check a user's savings ratio against the risk threshold")
	fmt.Println("  recent       Show a user's most recent transactions")
	fmt.Println("  import       Import a CSV file or gs:// object")
	fmt.Println("  upload       Upload a local CSV to GCS, optionally importing it")
	fmt.Println("  chart        Render monthly net cash flow as a PNG bar chart")
	fmt.Println("  tools        List the available tools")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// session holds what every store-backed command needs.
type session struct {
	ctx   context.Context
	cfg   config.Config
	log   zerolog.Logger
	store ledger.Store
	svc   *insights.Service
}

// open loads configuration and opens the store. Callers must close the
// returned session.
func open(log zerolog.Logger, configPath string, timeout time.Duration) (*session, func()) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if lvl, err := logger.ParseLevel(cfg.Log.Level); err == nil {
		log = log.Level(lvl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = logger.WithContext(ctx, log)

	store, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to open transaction store")
	}

	s := &session{
		ctx:   ctx,
		cfg:   cfg,
		log:   log,
		store: store,
		svc:   insights.NewService(store, nil),
	}
	return s, func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
		cancel()
	}
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")
}

// call runs a tool and prints its message. Argument errors exit non-zero.
func (s *session) call(name string, args map[string]any) {
	out, err := tools.NewRegistry(s.svc).Call(s.ctx, name, args)
	fmt.Println(out)
	if err != nil {
		os.Exit(2)
	}
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := configFlag(fs)
	userID := fs.String("user", "", "user ID")
	date := fs.String("date", time.Now().Format("2006-01-02"), "transaction date (YYYY-MM-DD)")
	description := fs.String("description", "", "description")
	amount := fs.String("amount", "", "amount, a non-negative number")
	txType := fs.String("type", "", "credit or debit")
	category := fs.String("category", "", "category")
	account := fs.String("account", "", "account name")
	fs.Parse(os.Args[2:])

	if *userID == "" || *amount == "" || *txType == "" {
		log.Fatal().Msg("Usage: cli add -user ID -amount N -type credit|debit [-date YYYY-MM-DD] [-category C]")
	}

	s, closeFn := open(log, *configPath, 30*time.Second)
	defer closeFn()

	s.call(tools.AddTransaction, map[string]any{
		"user_id":          *userID,
		"date":             *date,
		"description":      *description,
		"amount":           *amount,
		"transaction_type": *txType,
		"category":         *category,
		"account_name":     *account,
	})
}

func runTool(log zerolog.Logger, command, tool string) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := configFlag(fs)
	userID := fs.String("user", "", "user ID")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msgf("Usage: cli %s -user ID", command)
	}

	s, closeFn := open(log, *configPath, time.Minute)
	defer closeFn()

	s.call(tool, map[string]any{"user_id": *userID})
}

func runRecent(log zerolog.Logger) {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	configPath := configFlag(fs)
	userID := fs.String("user", "", "user ID")
	limit := fs.Int("limit", insights.DefaultRecentLimit, "number of transactions to show")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Usage: cli recent -user ID [-limit N]")
	}

	s, closeFn := open(log, *configPath, time.Minute)
	defer closeFn()

	s.call(tools.RecentTransactions, map[string]any{"user_id": *userID, "limit": *limit})
}

func runImport(log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := configFlag(fs)
	source := fs.String("source", "", "CSV path or gs://bucket/object (defaults to the configured source)")
	defaultUser := fs.String("default-user", "", "user ID for rows without one")
	fs.Parse(os.Args[2:])

	s, closeFn := open(log, *configPath, 5*time.Minute)
	defer closeFn()

	location := *source
	if location == "" {
		location = s.cfg.Import.Source
	}
	if location == "" {
		log.Fatal().Msg("Usage: cli import -source PATH|gs://bucket/object")
	}
	opts := ingest.ParseOptions{DefaultUserID: s.cfg.Import.DefaultUserID}
	if *defaultUser != "" {
		opts.DefaultUserID = *defaultUser
	}

	sources := ingest.NewRouter()
	defer sources.Close()

	res, err := ingest.NewImporter(sources, s.store, opts).Import(s.ctx, location)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Imported %d transactions for %d users from %s\n", res.Rows, res.Users, ingest.SourceName(location))
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := configFlag(fs)
	filePath := fs.String("file", "", "path to local CSV file")
	uri := fs.String("uri", "", "destination, gs://bucket/object (defaults to the file name)")
	bucket := fs.String("bucket", "", "GCS bucket name, used when -uri is empty")
	andImport := fs.Bool("import", false, "import the uploaded object")
	fs.Parse(os.Args[2:])

	if *filePath == "" || (*uri == "" && *bucket == "") {
		log.Fatal().Msg("Usage: cli upload -file PATH (-uri gs://bucket/object | -bucket NAME) [-import]")
	}
	if *uri == "" {
		*uri = "gs://" + *bucket + "/" + filepath.Base(*filePath)
	}

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open file")
	}
	defer f.Close()

	ctx := logger.WithContext(context.Background(), log)
	gcs := ingest.NewGCSSource(nil)
	defer gcs.Close()

	log.Info().Str("file", *filePath).Str("uri", *uri).Msg("Uploading file to GCS")
	if err := gcs.Upload(ctx, f, *uri); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %s to %s\n", *filePath, *uri)

	if !*andImport {
		return
	}

	s, closeFn := open(log, *configPath, 5*time.Minute)
	defer closeFn()

	res, err := ingest.NewImporter(gcs, s.store, ingest.ParseOptions{DefaultUserID: s.cfg.Import.DefaultUserID}).Import(s.ctx, *uri)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}
	fmt.Printf("Imported %d transactions for %d users\n", res.Rows, res.Users)
}

func runChart(log zerolog.Logger) {
	fs := flag.NewFlagSet("chart", flag.ExitOnError)
	configPath := configFlag(fs)
	userID := fs.String("user", "", "user ID")
	output := fs.String("output", "cashflow.png", "output PNG path")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Usage: cli chart -user ID [-output FILE]")
	}

	s, closeFn := open(log, *configPath, time.Minute)
	defer closeFn()

	series, err := s.svc.Series(s.ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Str("user_id", *userID).Msg("No monthly data to chart")
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output file")
	}
	defer f.Close()

	if err := report.MonthlyChart(f, "Monthly net cash flow: "+*userID, series); err != nil {
		log.Fatal().Err(err).Msg("Failed to render chart")
	}

	fmt.Printf("Wrote %d months to %s\n", len(series), *output)
}

func runListTools() {
	for _, d := range tools.NewRegistry(nil).List() {
		fmt.Printf("%-30s %s\n", d.Name, d.Description)
		for _, p := range d.Params {
			req := ""
			if p.Required {
				req = " (required)"
			}
			fmt.Printf("    %-20s %s%s\n", p.Name, p.Type, req)
		}
	}
}
