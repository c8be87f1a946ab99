package repository

import (
	"strings"

	"github.com/neuronlabs/docorm/errors"
)

var (
	// ErrRepository is the major error repository classification.
	ErrRepository = errors.New("repository")
	// ErrPersistence is the error classification for the failed write operations.
	ErrPersistence = errors.Wrap(ErrRepository, "persistence")
	// ErrNotFound is the error classification when the row is not found.
	ErrNotFound = errors.Wrap(ErrRepository, "not found")
	// ErrNoTable is the error classification when the table doesn't exist.
	ErrNoTable = errors.Wrap(ErrRepository, "no table")
	// ErrNoIndex is the error classification when the secondary index doesn't exist.
	ErrNoIndex = errors.Wrap(ErrRepository, "no index")
	// ErrDuplicateKey is the error classification when the primary key already exists.
	ErrDuplicateKey = errors.Wrap(ErrPersistence, "duplicate primary key")
	// ErrClosed is the error classification when the repository or the feed is already closed.
	ErrClosed = errors.Wrap(ErrRepository, "closed")
	// ErrFactory is the error classification related to the repository factories.
	ErrFactory = errors.Wrap(ErrRepository, "factory")
	// ErrUnknownDriver is the error when the factory for the driver is not registered.
	ErrUnknownDriver = errors.Wrap(ErrFactory, "unknown driver")
)

// PersistenceError is the error of the repository operation along with the table and
// the operation name.
type PersistenceError struct {
	Table     string
	Operation string
	// FirstError is the first error message returned within the operation result.
	FirstError string
	// Err is the error returned by the repository.
	Err error
}

// NewPersistenceError creates new persistence error for the 'table' 'operation' with the 'err' cause.
func NewPersistenceError(table, operation string, err error) *PersistenceError {
	return &PersistenceError{Table: table, Operation: operation, Err: err}
}

// Error implements error interface.
func (e *PersistenceError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(ErrPersistence.Error())
	sb.WriteString(": ")
	sb.WriteString(e.Operation)
	sb.WriteString(" on table: '")
	sb.WriteString(e.Table)
	sb.WriteString("' failed")
	if e.FirstError != "" {
		sb.WriteString(": ")
		sb.WriteString(e.FirstError)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap gets the repository error. If the error is the result's first error the ErrPersistence is returned.
func (e *PersistenceError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrPersistence
}

// Is makes every persistence error match the ErrPersistence class.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
