package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-insights/internal/domain"
)

// TransactionRow is the row layout of <dataset>.transactions.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED, streaming insert id
	Seq           int64  `bigquery:"seq"`            // REQUIRED, insertion order

	UserID string `bigquery:"user_id"` // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Description     string     `bigquery:"description"`

	Amount          *big.Rat `bigquery:"amount"`           // REQUIRED NUMERIC, magnitude
	TransactionType string   `bigquery:"transaction_type"` // REQUIRED, credit|debit

	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE
	AccountName  bigquery.NullString `bigquery:"account_name"`  // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// toRow maps a validated domain transaction to its BigQuery row.
func toRow(tx *domain.Transaction, id string, seq int64, created time.Time) *TransactionRow {
	return &TransactionRow{
		TransactionID:   id,
		Seq:             seq,
		UserID:          tx.UserID,
		TransactionDate: civil.DateOf(tx.Date),
		Description:     tx.Description,
		Amount:          tx.Amount.Rat(),
		TransactionType: string(tx.Type),
		CategoryName:    nullString(tx.Category),
		AccountName:     nullString(tx.AccountName),
		CreatedTS:       created,
	}
}

// toDomain maps a BigQuery row back to a domain transaction.
func (r *TransactionRow) toDomain() (domain.Transaction, error) {
	amount := decimal.Zero
	if r.Amount != nil {
		var err error
		// NUMERIC has a scale of 9
		amount, err = decimal.NewFromString(r.Amount.FloatString(9))
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("toDomain: amount: %w", err)
		}
	}
	return domain.Transaction{
		ID:          r.Seq,
		UserID:      r.UserID,
		Date:        r.TransactionDate.In(time.UTC),
		Description: r.Description,
		Amount:      amount,
		Type:        domain.TransactionType(r.TransactionType),
		Category:    r.CategoryName.StringVal,
		AccountName: r.AccountName.StringVal,
	}, nil
}
