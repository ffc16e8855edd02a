package ingest

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-insights/internal/ledger"
	"github.com/dvloznov/finance-insights/internal/logger"
)

// Result describes a finished import.
type Result struct {
	Source string
	Rows   int
	Users  int
}

// Importer loads a CSV source into a store as a single batch.
type Importer struct {
	source Source
	store  ledger.Store
	opts   ParseOptions
}

// NewImporter creates an Importer reading from source and writing to store.
func NewImporter(source Source, store ledger.Store, opts ParseOptions) *Importer {
	return &Importer{source: source, store: store, opts: opts}
}

// Import checks that location exists, parses every row and writes them all
// with one InsertBatch. Any malformed row or missing column aborts the
// import before anything is written.
func (i *Importer) Import(ctx context.Context, location string) (Result, error) {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"source": location})

	if err := i.source.Check(ctx, location); err != nil {
		return Result{}, fmt.Errorf("Import: checking source: %w", err)
	}

	rc, err := i.source.Open(ctx, location)
	if err != nil {
		return Result{}, fmt.Errorf("Import: opening source: %w", err)
	}
	defer rc.Close()

	txs, err := ParseCSV(rc, i.opts)
	if err != nil {
		log.Error().Err(err).Msg("CSV rejected, nothing imported")
		return Result{}, fmt.Errorf("Import: parsing CSV: %w", err)
	}

	users := make(map[string]struct{})
	for _, tx := range txs {
		users[tx.UserID] = struct{}{}
	}
	res := Result{Source: location, Rows: len(txs), Users: len(users)}

	if len(txs) == 0 {
		log.Warn().Msg("CSV has a header but no rows")
		return res, nil
	}

	if err := i.store.InsertBatch(ctx, txs); err != nil {
		return Result{}, fmt.Errorf("Import: inserting batch: %w", err)
	}

	log.Info().Int("rows", res.Rows).Int("users", res.Users).Msg("CSV import complete")
	return res, nil
}
