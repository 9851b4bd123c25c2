package analyzer

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by lookups by identifier that match nothing.
var ErrNotFound = errors.New("not found")

// DecodeError reports a malformed byte stream. It is fatal to an ingestion run.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode csv at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("decode csv: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PersistenceError reports a failed batch write. The transaction was rolled back.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist session: %v", e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// IngestionError is the single error an ingestion run surfaces to its caller.
// Err is a *DecodeError, a *PersistenceError or a context error.
type IngestionError struct {
	Source  string
	Session *Session
	Err     error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %q: %v", e.Source, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// InvalidFilterError rejects a malformed query filter.
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter: %s %s", e.Field, e.Reason)
}

// RowWarning describes a row that was defaulted or skipped. Warnings never
// abort an ingestion run.
type RowWarning struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}
