package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const transactionsTable = "transactions"

// ensureTransactionsTableWithClient creates the dataset table if it does not exist.
func ensureTransactionsTableWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.%s`"+` (
			transaction_id   STRING NOT NULL,
			seq              INT64 NOT NULL,
			user_id          STRING NOT NULL,
			transaction_date DATE NOT NULL,
			description      STRING,
			amount           NUMERIC NOT NULL,
			transaction_type STRING NOT NULL,
			category_name    STRING,
			account_name     STRING,
			created_ts       TIMESTAMP NOT NULL
		)
		CLUSTER BY user_id
	`, projectID, datasetID, transactionsTable)

	job, err := client.Query(sql).Run(ctx)
	if err != nil {
		return fmt.Errorf("ensureTransactionsTable: running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("ensureTransactionsTable: waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("ensureTransactionsTable: job error: %w", err)
	}

	return nil
}

// InsertTransactionRowsWithClient streams rows into the transactions table.
// transaction_id is used as the insert id. A streaming request can succeed
// for some rows only, so multi-row batches go through
// LoadTransactionRowsWithClient instead.
func InsertTransactionRowsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	savers := make([]*bigquery.StructSaver, len(rows))
	for i, row := range rows {
		savers[i] = &bigquery.StructSaver{Struct: row, InsertID: row.TransactionID}
	}

	// Use fully qualified table name to avoid project ID issues
	table := client.DatasetInProject(projectID, datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, savers); err != nil {
		return fmt.Errorf("InsertTransactionRows: inserting rows: %w", err)
	}

	return nil
}

// loadRow is the newline-delimited JSON form of a TransactionRow.
type loadRow struct {
	TransactionID   string  `json:"transaction_id"`
	Seq             int64   `json:"seq,string"`
	UserID          string  `json:"user_id"`
	TransactionDate string  `json:"transaction_date"`
	Description     string  `json:"description"`
	Amount          string  `json:"amount"`
	TransactionType string  `json:"transaction_type"`
	CategoryName    *string `json:"category_name"`
	AccountName     *string `json:"account_name"`
	CreatedTS       string  `json:"created_ts"`
}

func nullableJSON(ns bigquery.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.StringVal
	return &s
}

// encodeLoadRows renders rows as newline-delimited JSON for a load job.
func encodeLoadRows(rows []*TransactionRow) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		amount := "0"
		if row.Amount != nil {
			amount = row.Amount.FloatString(9)
		}
		lr := loadRow{
			TransactionID:   row.TransactionID,
			Seq:             row.Seq,
			UserID:          row.UserID,
			TransactionDate: row.TransactionDate.String(),
			Description:     row.Description,
			Amount:          amount,
			TransactionType: row.TransactionType,
			CategoryName:    nullableJSON(row.CategoryName),
			AccountName:     nullableJSON(row.AccountName),
			// TIMESTAMP keeps microseconds
			CreatedTS: row.CreatedTS.UTC().Format("2006-01-02T15:04:05.999999Z07:00"),
		}
		if err := enc.Encode(lr); err != nil {
			return nil, fmt.Errorf("encodeLoadRows: %s: %w", row.TransactionID, err)
		}
	}
	return buf.Bytes(), nil
}

// LoadTransactionRowsWithClient appends rows to the transactions table with
// a single load job. A load job commits all of its rows or none of them.
func LoadTransactionRowsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	data, err := encodeLoadRows(rows)
	if err != nil {
		return fmt.Errorf("LoadTransactionRows: %w", err)
	}

	src := bigquery.NewReaderSource(bytes.NewReader(data))
	src.SourceFormat = bigquery.JSON

	table := client.DatasetInProject(projectID, datasetID).Table(transactionsTable)
	loader := table.LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateNever

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("LoadTransactionRows: starting load job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("LoadTransactionRows: waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("LoadTransactionRows: job error: %w", err)
	}

	return nil
}

// QueryTransactionRowsByUserWithClient returns every row for userID in
// insertion order.
func QueryTransactionRowsByUserWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, userID string) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.seq,
			t.user_id,
			t.transaction_date,
			t.description,
			t.amount,
			t.transaction_type,
			t.category_name,
			t.account_name,
			t.created_ts
		FROM `+"`%s.%s.%s`"+` t
		WHERE t.user_id = @user_id
		ORDER BY t.seq
	`, projectID, datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionRowsByUser: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionRowsByUser: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
