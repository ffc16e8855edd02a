package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/finance-insights/internal/domain"
)

var (
	// ErrMissingColumn is the cause of an IngestionError for a header
	// without one of the required columns.
	ErrMissingColumn = errors.New("missing required column")
	// ErrEmptySource is returned for a CSV without a header row.
	ErrEmptySource = errors.New("empty CSV source")
)

// Column names of the bank export the importer reads.
const (
	ColumnUserID          = "User ID"
	ColumnDate            = "Date"
	ColumnDescription     = "Description"
	ColumnAmount          = "Amount"
	ColumnTransactionType = "Transaction Type"
	ColumnCategory        = "Category"
	ColumnAccountName     = "Account Name"
)

// RequiredColumns lists every column a CSV source must carry.
var RequiredColumns = []string{
	ColumnUserID,
	ColumnDate,
	ColumnDescription,
	ColumnAmount,
	ColumnTransactionType,
	ColumnCategory,
	ColumnAccountName,
}

// columnByField maps ValidationError fields back to CSV column names.
var columnByField = map[string]string{
	"user_id":          ColumnUserID,
	"date":             ColumnDate,
	"amount":           ColumnAmount,
	"transaction_type": ColumnTransactionType,
}

// ParseOptions tunes ParseCSV.
type ParseOptions struct {
	// DefaultUserID fills rows whose User ID cell is blank.
	DefaultUserID string
}

// ParseCSV reads a header row followed by transaction rows. The header is
// matched case- and whitespace-insensitively and extra columns are ignored.
// The first malformed row aborts the parse; nothing is returned on error.
func ParseCSV(r io.Reader, opts ParseOptions) ([]*domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.IngestionError{Err: ErrEmptySource}
	}
	if err != nil {
		return nil, &domain.IngestionError{Line: 1, Err: fmt.Errorf("reading header: %w", err)}
	}

	index, err := mapColumns(headers)
	if err != nil {
		return nil, err
	}

	var txs []*domain.Transaction
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			ingErr := &domain.IngestionError{Err: err}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				ingErr.Line = parseErr.Line
			}
			return nil, ingErr
		}
		line, _ := reader.FieldPos(0)
		if isBlank(row) {
			continue
		}

		cell := func(col string) string {
			i := index[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		userID := cell(ColumnUserID)
		if userID == "" {
			userID = opts.DefaultUserID
		}

		tx, err := domain.NewTransaction(
			userID,
			cell(ColumnDate),
			cell(ColumnDescription),
			cell(ColumnAmount),
			cell(ColumnTransactionType),
			cell(ColumnCategory),
			cell(ColumnAccountName),
		)
		if err != nil {
			ingErr := &domain.IngestionError{Line: line, Err: err}
			var vErr *domain.ValidationError
			if errors.As(err, &vErr) {
				ingErr.Column = columnByField[vErr.Field]
			}
			return nil, ingErr
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

// mapColumns returns the position of every required column in headers.
func mapColumns(headers []string) (map[string]int, error) {
	positions := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	index := make(map[string]int, len(RequiredColumns))
	for _, col := range RequiredColumns {
		i, ok := positions[normalizeHeader(col)]
		if !ok {
			return nil, &domain.IngestionError{Column: col, Err: ErrMissingColumn}
		}
		index[col] = i
	}
	return index, nil
}

// normalizeHeader lowercases h and drops spaces, underscores and a UTF-8
// byte order mark, so "User ID", "user_id" and "USERID" all match.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(h)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '\t':
			return -1
		}
		return r
	}, h)
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
