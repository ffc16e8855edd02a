package ledger

import (
	"context"

	"github.com/dvloznov/finance-insights/internal/domain"
)

// Store is the append-only transaction ledger. Implementations must make
// each Insert and QueryByUser individually atomic.
type Store interface {
	// Init creates the backing schema. It is idempotent and runs at most
	// once per Store instance; call it during startup.
	Init(ctx context.Context) error

	// Insert validates and appends one transaction and returns its id.
	Insert(ctx context.Context, tx *domain.Transaction) (int64, error)

	// InsertBatch appends all transactions or none of them.
	InsertBatch(ctx context.Context, txs []*domain.Transaction) error

	// QueryByUser returns a copy of every transaction for userID in
	// insertion order.
	QueryByUser(ctx context.Context, userID string) ([]domain.Transaction, error)

	// Close releases the underlying connection.
	Close() error
}

// Reader is the read side used by the analytic tools.
type Reader interface {
	QueryByUser(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// ValidateBatch validates every transaction before anything is written, so
// a bad row never produces a partial batch.
func ValidateBatch(txs []*domain.Transaction) error {
	for _, tx := range txs {
		if tx == nil {
			return &domain.ValidationError{Field: "transaction", Reason: "is nil"}
		}
		if err := tx.Validate(); err != nil {
			return err
		}
	}
	return nil
}
