package db

import "errors"

// Sentinel errors for store operations.
var (
	ErrNotFound      = errors.New("db: document not found")
	ErrIndexConflict = errors.New("db: index exists with a different definition")
)

// Error wraps an underlying driver error with the operation name for
// diagnostics. The wrapped error is surfaced unmodified via Unwrap.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
