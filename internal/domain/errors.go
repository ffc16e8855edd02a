package domain

import (
	"fmt"
)

// ValidationError reports malformed or missing input to an insert.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IngestionError reports a CSV producer that does not match the expected
// schema. Any IngestionError aborts the whole batch.
type IngestionError struct {
	Line   int    // 1-based CSV line, 0 when the error is about the header or source
	Column string // offending column, if known
	Err    error
}

func (e *IngestionError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("ingestion failed at line %d, column %q: %v", e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("ingestion failed at line %d: %v", e.Line, e.Err)
	case e.Column != "":
		return fmt.Sprintf("ingestion failed: missing column %q", e.Column)
	}
	return fmt.Sprintf("ingestion failed: %v", e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
