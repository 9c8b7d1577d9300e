package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrRunNotFound    = fmt.Errorf("%w: audit run", ErrNotFound)
	ErrColumnNotFound = fmt.Errorf("%w: column", ErrNotFound)

	ErrSchemaMismatch   = errors.New("row width does not match schema")
	ErrDuplicateColumn  = errors.New("duplicate column name")
	ErrEmptyDescription = errors.New("provenance description cannot be empty")
)

// NewColumnNotFoundError reports a column that is absent from a dataset
func NewColumnNotFoundError(column string) error {
	return fmt.Errorf("%w: %s", ErrColumnNotFound, column)
}

// IsNotFoundError reports whether err is any not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
