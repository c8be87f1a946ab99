package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/neuronlabs/docorm/repository"
)

var _ repository.Repository = &Repository{}

// Repository is the testify mock implementation of the repository.Repository.
type Repository struct {
	mock.Mock
}

// TableCreate implements repository.Repository interface.
func (r *Repository) TableCreate(ctx context.Context, table, primaryKey string) error {
	args := r.Called(ctx, table, primaryKey)
	return args.Error(0)
}

// IndexCreate implements repository.Repository interface.
func (r *Repository) IndexCreate(ctx context.Context, table, field string) error {
	args := r.Called(ctx, table, field)
	return args.Error(0)
}

// IndexWait implements repository.Repository interface.
func (r *Repository) IndexWait(ctx context.Context, table string, indexes ...string) error {
	args := r.Called(ctx, table, indexes)
	return args.Error(0)
}

// Insert implements repository.Repository interface.
func (r *Repository) Insert(ctx context.Context, table string, value map[string]interface{}, options ...repository.InsertOption) (*repository.Result, error) {
	args := r.Called(ctx, table, value)
	return result(args)
}

// Replace implements repository.Repository interface.
func (r *Repository) Replace(ctx context.Context, table string, pk interface{}, value map[string]interface{}) (*repository.Result, error) {
	args := r.Called(ctx, table, pk, value)
	return result(args)
}

// Get implements repository.Repository interface.
func (r *Repository) Get(ctx context.Context, table string, pk interface{}) (map[string]interface{}, error) {
	args := r.Called(ctx, table, pk)
	row, _ := args.Get(0).(map[string]interface{})
	return row, args.Error(1)
}

// Delete implements repository.Repository interface.
func (r *Repository) Delete(ctx context.Context, table string, pk interface{}) (*repository.Result, error) {
	args := r.Called(ctx, table, pk)
	return result(args)
}

// DeleteAll implements repository.Repository interface.
func (r *Repository) DeleteAll(ctx context.Context, table string, pks ...interface{}) (*repository.Result, error) {
	args := r.Called(ctx, table, pks)
	return result(args)
}

// ReplaceByIndex implements repository.Repository interface.
func (r *Repository) ReplaceByIndex(ctx context.Context, table, index string, key interface{}, fn repository.ReplaceFunc) (*repository.Result, error) {
	args := r.Called(ctx, table, index, key)
	return result(args)
}

// DeleteByIndex implements repository.Repository interface.
func (r *Repository) DeleteByIndex(ctx context.Context, table, index string, key interface{}) (*repository.Result, error) {
	args := r.Called(ctx, table, index, key)
	return result(args)
}

// Changes implements repository.Repository interface.
func (r *Repository) Changes(ctx context.Context, table string, pk interface{}) (repository.Feed, error) {
	args := r.Called(ctx, table, pk)
	feed, _ := args.Get(0).(repository.Feed)
	return feed, args.Error(1)
}

// Close implements repository.Repository interface.
func (r *Repository) Close(ctx context.Context) error {
	args := r.Called(ctx)
	return args.Error(0)
}

func result(args mock.Arguments) (*repository.Result, error) {
	res, _ := args.Get(0).(*repository.Result)
	return res, args.Error(1)
}
