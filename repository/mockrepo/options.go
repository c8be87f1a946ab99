package mockrepo

import (
	"context"

	"github.com/neuronlabs/docorm/repository"
)

// Options are the settings for the OnXXX functions.
type Options struct {
	Permanent bool
	Count     int
	Table     string
}

// Option is function that changes options.
type Option func(o *Options)

// Permanent is a permanent option
func Permanent() Option {
	return func(o *Options) {
		o.Permanent = true
	}
}

// Count sets the number of executions of given function.
func Count(count int) Option {
	return func(o *Options) {
		o.Count = count
	}
}

// Table limits the function executions to the calls on the 'table'.
func Table(table string) Option {
	return func(o *Options) {
		o.Table = table
	}
}

// InsertFunc is the insert execution function.
type InsertFunc func(ctx context.Context, table string, value map[string]interface{}, options ...repository.InsertOption) (*repository.Result, error)

// ReplaceFunc is the replace execution function.
type ReplaceFunc func(ctx context.Context, table string, pk interface{}, value map[string]interface{}) (*repository.Result, error)

// DeleteFunc is the delete execution function.
type DeleteFunc func(ctx context.Context, table string, pks ...interface{}) (*repository.Result, error)

// IndexFunc is the execution function of the operations on the secondary index.
type IndexFunc func(ctx context.Context, table, index string, key interface{}) (*repository.Result, error)

// GetFunc is the get execution function.
type GetFunc func(ctx context.Context, table string, pk interface{}) (map[string]interface{}, error)

// executer is the executor of the function 'fn'.
type executer struct {
	options *Options
	fn      interface{}
}
