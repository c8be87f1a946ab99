package mockrepo

import (
	"context"
	"sync"

	"github.com/neuronlabs/docorm/log"
	"github.com/neuronlabs/docorm/repository"
)

var (
	_ repository.Repository    = &Repository{}
	_ repository.HealthChecker = &Repository{}
)

// Operation names of the recorded calls.
const (
	OpInsert         = "insert"
	OpReplace        = "replace"
	OpGet            = "get"
	OpDelete         = "delete"
	OpReplaceByIndex = "replace_by_index"
	OpDeleteByIndex  = "delete_by_index"
)

// Call is the recorded repository call.
type Call struct {
	Operation string
	Table     string
	Key       interface{}
}

// Repository is a mock repository implementation. The calls are served by the functions registered
// with the OnXXX methods. The calls with no matching function are passed to the Base repository.
// If the Base is not set the call panics.
type Repository struct {
	Base repository.Repository

	mu        sync.Mutex
	executers map[string][]*executer
	calls     []Call
}

// New creates the mock repository that passes not mocked calls to the 'base' repository.
func New(base repository.Repository) *Repository {
	return &Repository{Base: base}
}

// Calls gets the recorded calls of the 'operation'. If no operation is provided all calls are returned.
func (r *Repository) Calls(operation ...string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var calls []Call
	for _, c := range r.calls {
		if len(operation) == 0 || operation[0] == c.Operation {
			calls = append(calls, c)
		}
	}
	return calls
}

// OnInsert adds the insert executioner function.
func (r *Repository) OnInsert(fn InsertFunc, options ...Option) {
	r.on(OpInsert, fn, options)
}

// OnReplace adds the replace executioner function.
func (r *Repository) OnReplace(fn ReplaceFunc, options ...Option) {
	r.on(OpReplace, fn, options)
}

// OnGet adds the get executioner function.
func (r *Repository) OnGet(fn GetFunc, options ...Option) {
	r.on(OpGet, fn, options)
}

// OnDelete adds the delete executioner function. It serves both Delete and DeleteAll calls.
func (r *Repository) OnDelete(fn DeleteFunc, options ...Option) {
	r.on(OpDelete, fn, options)
}

// OnReplaceByIndex adds the replace by index executioner function.
func (r *Repository) OnReplaceByIndex(fn IndexFunc, options ...Option) {
	r.on(OpReplaceByIndex, fn, options)
}

// OnDeleteByIndex adds the delete by index executioner function.
func (r *Repository) OnDeleteByIndex(fn IndexFunc, options ...Option) {
	r.on(OpDeleteByIndex, fn, options)
}

// TableCreate implements repository.Repository interface.
func (r *Repository) TableCreate(ctx context.Context, table, primaryKey string) error {
	if r.Base == nil {
		return nil
	}
	return r.Base.TableCreate(ctx, table, primaryKey)
}

// IndexCreate implements repository.Repository interface.
func (r *Repository) IndexCreate(ctx context.Context, table, field string) error {
	if r.Base == nil {
		return nil
	}
	return r.Base.IndexCreate(ctx, table, field)
}

// IndexWait implements repository.Repository interface.
func (r *Repository) IndexWait(ctx context.Context, table string, indexes ...string) error {
	if r.Base == nil {
		return nil
	}
	return r.Base.IndexWait(ctx, table, indexes...)
}

// Insert implements repository.Repository interface.
func (r *Repository) Insert(ctx context.Context, table string, value map[string]interface{}, options ...repository.InsertOption) (*repository.Result, error) {
	fn := r.next(OpInsert, table, value)
	if fn != nil {
		return fn.(InsertFunc)(ctx, table, value, options...)
	}
	r.mustBase(OpInsert, table)
	return r.Base.Insert(ctx, table, value, options...)
}

// Replace implements repository.Repository interface.
func (r *Repository) Replace(ctx context.Context, table string, pk interface{}, value map[string]interface{}) (*repository.Result, error) {
	fn := r.next(OpReplace, table, pk)
	if fn != nil {
		return fn.(ReplaceFunc)(ctx, table, pk, value)
	}
	r.mustBase(OpReplace, table)
	return r.Base.Replace(ctx, table, pk, value)
}

// Get implements repository.Repository interface.
func (r *Repository) Get(ctx context.Context, table string, pk interface{}) (map[string]interface{}, error) {
	fn := r.next(OpGet, table, pk)
	if fn != nil {
		return fn.(GetFunc)(ctx, table, pk)
	}
	r.mustBase(OpGet, table)
	return r.Base.Get(ctx, table, pk)
}

// Delete implements repository.Repository interface.
func (r *Repository) Delete(ctx context.Context, table string, pk interface{}) (*repository.Result, error) {
	return r.DeleteAll(ctx, table, pk)
}

// DeleteAll implements repository.Repository interface.
func (r *Repository) DeleteAll(ctx context.Context, table string, pks ...interface{}) (*repository.Result, error) {
	fn := r.next(OpDelete, table, pks)
	if fn != nil {
		return fn.(DeleteFunc)(ctx, table, pks...)
	}
	r.mustBase(OpDelete, table)
	return r.Base.DeleteAll(ctx, table, pks...)
}

// ReplaceByIndex implements repository.Repository interface.
func (r *Repository) ReplaceByIndex(ctx context.Context, table, index string, key interface{}, replace repository.ReplaceFunc) (*repository.Result, error) {
	fn := r.next(OpReplaceByIndex, table, key)
	if fn != nil {
		return fn.(IndexFunc)(ctx, table, index, key)
	}
	r.mustBase(OpReplaceByIndex, table)
	return r.Base.ReplaceByIndex(ctx, table, index, key, replace)
}

// DeleteByIndex implements repository.Repository interface.
func (r *Repository) DeleteByIndex(ctx context.Context, table, index string, key interface{}) (*repository.Result, error) {
	fn := r.next(OpDeleteByIndex, table, key)
	if fn != nil {
		return fn.(IndexFunc)(ctx, table, index, key)
	}
	r.mustBase(OpDeleteByIndex, table)
	return r.Base.DeleteByIndex(ctx, table, index, key)
}

// Changes implements repository.Repository interface.
func (r *Repository) Changes(ctx context.Context, table string, pk interface{}) (repository.Feed, error) {
	r.mustBase("changes", table)
	return r.Base.Changes(ctx, table, pk)
}

// Close implements repository.Repository interface.
func (r *Repository) Close(ctx context.Context) error {
	if r.Base == nil {
		return nil
	}
	return r.Base.Close(ctx)
}

// HealthCheck implements repository.HealthChecker interface.
func (r *Repository) HealthCheck(ctx context.Context) (*repository.HealthResponse, error) {
	if checker, ok := r.Base.(repository.HealthChecker); ok {
		return checker.HealthCheck(ctx)
	}
	return repository.Passed(), nil
}

func (r *Repository) on(operation string, fn interface{}, options []Option) {
	o := &Options{}
	for _, option := range options {
		option(o)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.executers == nil {
		r.executers = make(map[string][]*executer)
	}
	r.executers[operation] = append(r.executers[operation], &executer{options: o, fn: fn})
}

// next records the call and gets the first registered function that matches the 'table'.
func (r *Repository) next(operation, table string, key interface{}) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Operation: operation, Table: table, Key: key})

	executers := r.executers[operation]
	for i, e := range executers {
		if e.options.Table != "" && e.options.Table != table {
			continue
		}
		if e.options.Count > 0 {
			e.options.Count--
		}
		if e.options.Count == 0 && !e.options.Permanent {
			r.executers[operation] = append(executers[:i:i], executers[i+1:]...)
		}
		return e.fn
	}
	return nil
}

func (r *Repository) mustBase(operation, table string) {
	if r.Base == nil {
		log.Panicf("no %s executer found for table: '%s'", operation, table)
	}
}
