package repository

import (
	"context"
)

// Repository is the interface of the database used by the document operations.
// All the operations are safe for concurrent use.
type Repository interface {
	// TableCreate creates the 'table' with provided 'primaryKey' field if it doesn't exist.
	TableCreate(ctx context.Context, table, primaryKey string) error
	// IndexCreate creates the secondary index on the 'field' of the 'table' if it doesn't exist.
	IndexCreate(ctx context.Context, table, field string) error
	// IndexWait waits until the 'indexes' of the 'table' are ready.
	IndexWait(ctx context.Context, table string, indexes ...string) error

	// Insert inserts the 'value' into the 'table'. If the value has no primary key, it is generated.
	// The result contains the inserted row change. A duplicated primary key is reported
	// in the result's FirstError unless the ConflictReplace option is set.
	Insert(ctx context.Context, table string, value map[string]interface{}, options ...InsertOption) (*Result, error)
	// Replace replaces the row with the primary key 'pk' with the 'value'. Missing row is inserted.
	Replace(ctx context.Context, table string, pk interface{}, value map[string]interface{}) (*Result, error)
	// Get gets the row by its primary key. Returns ErrNotFound error if the row doesn't exist.
	Get(ctx context.Context, table string, pk interface{}) (map[string]interface{}, error)
	// Delete deletes the row with the primary key 'pk'.
	Delete(ctx context.Context, table string, pk interface{}) (*Result, error)
	// DeleteAll deletes the rows with provided primary keys.
	DeleteAll(ctx context.Context, table string, pks ...interface{}) (*Result, error)
	// ReplaceByIndex replaces all the rows which 'index' field equals to the 'key' with the result of the 'fn'.
	ReplaceByIndex(ctx context.Context, table, index string, key interface{}, fn ReplaceFunc) (*Result, error)
	// DeleteByIndex deletes all the rows which 'index' field equals to the 'key'.
	DeleteByIndex(ctx context.Context, table, index string, key interface{}) (*Result, error)
	// Changes subscribes for the changes of the row with the primary key 'pk'.
	// The feed is closed when the 'ctx' is done or on Close call.
	Changes(ctx context.Context, table string, pk interface{}) (Feed, error)

	// Close closes the repository.
	Close(ctx context.Context) error
}

// ReplaceFunc is the function that creates the replacement for the 'row'.
type ReplaceFunc func(row map[string]interface{}) map[string]interface{}

// Without is the ReplaceFunc that removes the 'fields' from the row.
func Without(fields ...string) ReplaceFunc {
	return func(row map[string]interface{}) map[string]interface{} {
		result := make(map[string]interface{}, len(row))
		for k, v := range row {
			result[k] = v
		}
		for _, field := range fields {
			delete(result, field)
		}
		return result
	}
}

// Change is the single row change. The nil OldValue means inserted row, the nil NewValue deleted row.
type Change struct {
	OldValue map[string]interface{}
	NewValue map[string]interface{}
}

// Result is the result of the write operation.
type Result struct {
	Inserted  int
	Replaced  int
	Unchanged int
	Deleted   int
	Errors    int
	// FirstError is the first error message of the failed row writes.
	FirstError string
	// GeneratedKeys are the primary keys generated on insert.
	GeneratedKeys []interface{}
	Changes       []Change
}

// AddError adds the row write error to the result.
func (r *Result) AddError(message string) {
	if r.FirstError == "" {
		r.FirstError = message
	}
	r.Errors++
}

// Err gets the PersistenceError of the 'table' 'operation' if the result contains the row errors.
func (r *Result) Err(table, operation string) error {
	if r == nil || r.FirstError == "" {
		return nil
	}
	return &PersistenceError{Table: table, Operation: operation, FirstError: r.FirstError}
}

// Feed is the lazy, non restartable sequence of the row changes.
type Feed interface {
	// Next waits for the next change. Returns ErrClosed error when the feed is closed.
	Next(ctx context.Context) (*Change, error)
	// Close closes the feed.
	Close() error
}
