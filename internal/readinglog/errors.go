package readinglog

import (
	"errors"
	"fmt"
)

// ErrSchemaNotReady is wrapped in a StorageError while the log table could
// not be ensured.
var ErrSchemaNotReady = errors.New("log table schema is not ready")

// ValidationError represents user-facing validation issues.
type ValidationError struct {
	msg string
}

func (e ValidationError) Error() string {
	return e.msg
}

// NewValidationError creates a new validation error.
func NewValidationError(format string, args ...interface{}) error {
	return ValidationError{msg: fmt.Sprintf(format, args...)}
}

// StorageError wraps a failure of the backing database. Its cause is logged,
// never returned to clients.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
