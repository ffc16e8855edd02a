package bigquery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/ledger"
)

// DefaultDatasetID is the dataset used when none is configured.
const DefaultDatasetID = "finance"

// rowLoader writes rows to the transactions table as one atomic unit.
type rowLoader func(ctx context.Context, rows []*TransactionRow) error

// TransactionRepository is the BigQuery implementation of ledger.Store.
// It holds a shared client to avoid creating a new connection for each
// operation.
type TransactionRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string

	load rowLoader

	initOnce sync.Once
	initErr  error

	seqMu   sync.Mutex
	lastSeq int64
	now     func() time.Time
}

// NewTransactionRepository creates a repository with a shared BigQuery client.
func NewTransactionRepository(ctx context.Context, projectID, datasetID string) (*TransactionRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewTransactionRepository: project ID is required")
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRepository: creating client: %w", err)
	}
	return &TransactionRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		load: func(ctx context.Context, rows []*TransactionRow) error {
			return LoadTransactionRowsWithClient(ctx, client, projectID, datasetID, rows)
		},
		now: time.Now,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *TransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Init implements ledger.Store. The table is created at most once per
// repository.
func (r *TransactionRepository) Init(ctx context.Context) error {
	r.initOnce.Do(func() {
		r.initErr = ensureTransactionsTableWithClient(ctx, r.client, r.projectID, r.datasetID)
	})
	return r.initErr
}

// Insert implements ledger.Store.
func (r *TransactionRepository) Insert(ctx context.Context, tx *domain.Transaction) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("Insert: %w", &domain.ValidationError{Field: "transaction", Reason: "is nil"})
	}
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("Insert: %w", err)
	}

	rows := r.buildRows([]*domain.Transaction{tx})
	if err := InsertTransactionRowsWithClient(ctx, r.client, r.projectID, r.datasetID, rows); err != nil {
		return 0, fmt.Errorf("Insert: %w", err)
	}
	tx.ID = rows[0].Seq
	return tx.ID, nil
}

// InsertBatch implements ledger.Store. The whole batch is written by one
// load job after every row has been validated, so a failed batch leaves no
// rows behind and can be retried as a whole.
func (r *TransactionRepository) InsertBatch(ctx context.Context, txs []*domain.Transaction) error {
	if err := ledger.ValidateBatch(txs); err != nil {
		return fmt.Errorf("InsertBatch: %w", err)
	}
	if len(txs) == 0 {
		return nil
	}

	rows := r.buildRows(txs)
	if err := r.load(ctx, rows); err != nil {
		return fmt.Errorf("InsertBatch: %w", err)
	}
	for i := range txs {
		txs[i].ID = rows[i].Seq
	}
	return nil
}

// QueryByUser implements ledger.Store.
func (r *TransactionRepository) QueryByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := QueryTransactionRowsByUserWithClient(ctx, r.client, r.projectID, r.datasetID, userID)
	if err != nil {
		return nil, fmt.Errorf("QueryByUser: %w", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("QueryByUser: %s: %w", row.TransactionID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// buildRows assigns strictly increasing sequence numbers so that queries
// can return rows in insertion order.
func (r *TransactionRepository) buildRows(txs []*domain.Transaction) []*TransactionRow {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()

	created := r.now()
	seq := created.UnixNano()
	if seq <= r.lastSeq {
		seq = r.lastSeq + 1
	}

	rows := make([]*TransactionRow, len(txs))
	for i, tx := range txs {
		rows[i] = toRow(tx, uuid.NewString(), seq, created)
		r.lastSeq = seq
		seq++
	}
	return rows
}

// Ensure TransactionRepository implements ledger.Store interface.
var _ ledger.Store = (*TransactionRepository)(nil)
