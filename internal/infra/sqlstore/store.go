package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/ledger"
)

const (
	// DriverSQLite selects the sqlite dialect. The DSN is a file path.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the postgres dialect. The DSN is a postgres URL.
	DriverPostgres = "postgres"

	// DefaultSQLitePath is used when no DSN is configured.
	DefaultSQLitePath = "finance.db"

	batchSize = 500
)

// TransactionRecord is the row layout of the transactions table.
type TransactionRecord struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	UserID          string          `gorm:"not null;index"`
	Date            string          `gorm:"not null"` // YYYY-MM-DD
	Description     string
	Amount          decimal.Decimal `gorm:"type:numeric;not null"`
	TransactionType string          `gorm:"not null"`
	Category        string
	AccountName     string
	CreatedAt       time.Time
}

// TableName pins the table name to match existing finance.db files.
func (TransactionRecord) TableName() string {
	return "transactions"
}

// Store is a gorm-backed implementation of ledger.Store.
type Store struct {
	db       *gorm.DB
	initOnce sync.Once
	initErr  error
}

// Open connects to the database for the given driver and DSN.
// Init must still be called before use.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("Open: postgres driver requires a DSN")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("Open: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("Open: connecting to %s: %w", driver, err)
	}
	return New(db), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Init implements ledger.Store. The migration runs exactly once per Store;
// later calls return the first result.
func (s *Store) Init(ctx context.Context) error {
	s.initOnce.Do(func() {
		if err := s.db.WithContext(ctx).AutoMigrate(&TransactionRecord{}); err != nil {
			s.initErr = fmt.Errorf("Init: migrating transactions table: %w", err)
		}
	})
	return s.initErr
}

// Insert implements ledger.Store.
func (s *Store) Insert(ctx context.Context, tx *domain.Transaction) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("Insert: %w", &domain.ValidationError{Field: "transaction", Reason: "is nil"})
	}
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("Insert: %w", err)
	}

	rec := toRecord(tx)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("Insert: creating row: %w", err)
	}
	tx.ID = rec.ID
	return rec.ID, nil
}

// InsertBatch implements ledger.Store. Rows are written inside a single
// database transaction.
func (s *Store) InsertBatch(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	if err := ledger.ValidateBatch(txs); err != nil {
		return fmt.Errorf("InsertBatch: %w", err)
	}

	recs := make([]TransactionRecord, len(txs))
	for i, tx := range txs {
		recs[i] = toRecord(tx)
	}

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return db.CreateInBatches(&recs, batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("InsertBatch: inserting %d rows: %w", len(recs), err)
	}

	for i := range txs {
		txs[i].ID = recs[i].ID
	}
	return nil
}

// QueryByUser implements ledger.Store.
func (s *Store) QueryByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	var recs []TransactionRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("QueryByUser: %w", err)
	}

	out := make([]domain.Transaction, 0, len(recs))
	for _, rec := range recs {
		tx, err := fromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("QueryByUser: row %d: %w", rec.ID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// Close implements ledger.Store.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(tx *domain.Transaction) TransactionRecord {
	return TransactionRecord{
		UserID:          tx.UserID,
		Date:            tx.Date.Format(domain.DateFormat),
		Description:     tx.Description,
		Amount:          tx.Amount,
		TransactionType: string(tx.Type),
		Category:        tx.Category,
		AccountName:     tx.AccountName,
	}
}

func fromRecord(rec TransactionRecord) (domain.Transaction, error) {
	date, err := domain.ParseDate(rec.Date)
	if err != nil {
		return domain.Transaction{}, err
	}
	return domain.Transaction{
		ID:          rec.ID,
		UserID:      rec.UserID,
		Date:        date,
		Description: rec.Description,
		Amount:      rec.Amount,
		Type:        domain.TransactionType(rec.TransactionType),
		Category:    rec.Category,
		AccountName: rec.AccountName,
	}, nil
}

// Ensure Store implements ledger.Store interface.
var _ ledger.Store = (*Store)(nil)
