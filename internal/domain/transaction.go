package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction. The amount itself is
// always a magnitude; direction lives here.
type TransactionType string

const (
	// Credit is money coming in.
	Credit TransactionType = "credit"
	// Debit is money going out.
	Debit TransactionType = "debit"
)

// ParseTransactionType normalizes s (case and surrounding whitespace) and
// returns the matching TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case Credit:
		return Credit, nil
	case Debit:
		return Debit, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// Transaction represents one labeled ledger entry for a user.
// Records are append-only: once stored they are never updated.
type Transaction struct {
	ID int64 // assigned by the store on insert

	UserID      string
	Date        time.Time // calendar date, time of day is dropped
	Description string
	Amount      decimal.Decimal // magnitude, never negative
	Type        TransactionType
	Category    string
	AccountName string
}

// dateLayouts are the accepted input formats for transaction dates.
// The last one matches the bank CSV export the importer was built for.
var dateLayouts = []string{
	DateFormat,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006",
}

// MaxAmount is the largest accepted transaction magnitude. It keeps every
// sum well inside float64 range for the statistics built on top.
var MaxAmount = decimal.New(1, 15)

// DateFormat is the canonical ISO-8601 calendar date layout.
const DateFormat = "2006-01-02"

// ParseDate parses an ISO-8601 style date string into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// ParseAmount parses a decimal amount. Thousands separators and a leading
// currency symbol are tolerated.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", s)
	}
	return d, nil
}

// NewTransaction builds a validated Transaction from raw string inputs, the
// way they arrive from a tool call or a CSV row.
func NewTransaction(userID, date, description, amount, txType, category, accountName string) (*Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if strings.TrimSpace(date) == "" {
		return nil, &ValidationError{Field: "date", Reason: "is required"}
	}
	d, err := ParseDate(date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: err.Error()}
	}
	if strings.TrimSpace(amount) == "" {
		return nil, &ValidationError{Field: "amount", Reason: "is required"}
	}
	amt, err := ParseAmount(amount)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Reason: err.Error()}
	}
	if strings.TrimSpace(txType) == "" {
		return nil, &ValidationError{Field: "transaction_type", Reason: "is required"}
	}
	typ, err := ParseTransactionType(txType)
	if err != nil {
		return nil, &ValidationError{Field: "transaction_type", Reason: err.Error()}
	}

	tx := &Transaction{
		UserID:      strings.TrimSpace(userID),
		Date:        d,
		Description: description,
		Amount:      amt,
		Type:        typ,
		Category:    category,
		AccountName: accountName,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Validate checks the required fields and normalizes the transaction type
// to lowercase. Stores call it before every write.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if t.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if t.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "must be a non-negative magnitude"}
	}
	if t.Amount.GreaterThan(MaxAmount) {
		return &ValidationError{Field: "amount", Reason: "must not exceed " + MaxAmount.String()}
	}
	typ, err := ParseTransactionType(string(t.Type))
	if err != nil {
		return &ValidationError{Field: "transaction_type", Reason: err.Error()}
	}
	t.Type = typ
	return nil
}

// Signed returns the amount with the direction applied: positive for
// credits, negative for debits.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}
