package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/ledger"
)

// Store is an in-memory implementation of ledger.Store.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu     sync.RWMutex
	rows   []domain.Transaction
	nextID int64
}

// NewStore creates an empty in-memory ledger.
func NewStore() *Store {
	return &Store{nextID: 1}
}

// Init implements ledger.Store. There is no schema to create.
func (s *Store) Init(ctx context.Context) error {
	return nil
}

// Insert implements ledger.Store.
func (s *Store) Insert(ctx context.Context, tx *domain.Transaction) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("Insert: %w", &domain.ValidationError{Field: "transaction", Reason: "is nil"})
	}
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("Insert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(tx), nil
}

// InsertBatch implements ledger.Store.
func (s *Store) InsertBatch(ctx context.Context, txs []*domain.Transaction) error {
	if err := ledger.ValidateBatch(txs); err != nil {
		return fmt.Errorf("InsertBatch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		s.appendLocked(tx)
	}
	return nil
}

func (s *Store) appendLocked(tx *domain.Transaction) int64 {
	// Store a copy to avoid external modifications
	row := *tx
	row.ID = s.nextID
	s.nextID++
	s.rows = append(s.rows, row)
	tx.ID = row.ID
	return row.ID
}

// QueryByUser implements ledger.Store.
func (s *Store) QueryByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transaction
	for _, row := range s.rows {
		if row.UserID == userID {
			result = append(result, row)
		}
	}
	return result, nil
}

// Close implements ledger.Store.
func (s *Store) Close() error {
	return nil
}

// Ensure Store implements ledger.Store interface.
var _ ledger.Store = (*Store)(nil)
