package orm

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoRouter             = errors.New("orm: no data source router configured")
	ErrInvalidStatement     = errors.New("orm: invalid statement")
	ErrInvalidPagination    = errors.New("orm: invalid pagination")
	ErrStatementTimeout     = errors.New("orm: statement timed out")
	ErrPoolExhausted        = errors.New("orm: connection pool exhausted")
	ErrTxCompleted          = errors.New("orm: transaction already completed")
	ErrNotFound             = errors.New("orm: record not found")
	ErrRowStatusUnsupported = errors.New("orm: model has no row status column")
)

// StatementError wraps a failure that happened after a statement was handed
// to a pool.
type StatementError struct {
	SQLID    string
	Server   string
	Duration time.Duration
	Err      error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %s on %s failed after %s: %v", e.SQLID, e.Server, e.Duration, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidStatement, fmt.Sprintf(format, args...))
}
