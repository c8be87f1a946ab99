package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/neuronlabs/docorm/config"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/log"
	"github.com/neuronlabs/docorm/mapping"
	"github.com/neuronlabs/docorm/repository"
)

// DriverName is the name of the memory repository driver.
const DriverName = "memory"

var logger = log.NewModuleLogger("memory")

func init() {
	if err := repository.RegisterFactory(Factory{}); err != nil {
		log.Panicf("registering memory factory failed: %v", err)
	}
}

// Factory is the memory repository factory.
type Factory struct{}

// DriverName implements repository.Factory interface.
func (Factory) DriverName() string {
	return DriverName
}

// New implements repository.Factory interface.
func (Factory) New(_ *config.Repository) (repository.Repository, error) {
	return New(), nil
}

// Compile time check for the repository interfaces.
var (
	_ repository.Repository    = &Repository{}
	_ repository.HealthChecker = &Repository{}
)

// Repository is the in-memory repository. The rows are kept in the go-cache stores without expiration,
// one per table.
type Repository struct {
	mu     sync.RWMutex
	tables map[string]*table
	closed bool
}

type table struct {
	name       string
	primaryKey string

	mu      sync.Mutex
	rows    *cache.Cache
	indexes map[string]struct{}
	feeds   map[*subscription]struct{}
}

type subscription struct {
	key  string
	feed *repository.QueueFeed
}

// New creates new memory repository.
func New() *Repository {
	return &Repository{tables: make(map[string]*table)}
}

// TableCreate implements repository.Repository interface.
func (r *Repository) TableCreate(_ context.Context, name, primaryKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return repository.NewPersistenceError(name, "table_create", repository.ErrClosed)
	}
	if _, ok := r.tables[name]; ok {
		return nil
	}
	r.tables[name] = &table{
		name:       name,
		primaryKey: primaryKey,
		rows:       cache.New(cache.NoExpiration, 0),
		indexes:    make(map[string]struct{}),
		feeds:      make(map[*subscription]struct{}),
	}
	logger.Debug2f("table: '%s' created", name)
	return nil
}

// IndexCreate implements repository.Repository interface.
func (r *Repository) IndexCreate(_ context.Context, name, field string) error {
	t, err := r.table(name, "index_create")
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.indexes[field] = struct{}{}
	t.mu.Unlock()
	return nil
}

// IndexWait implements repository.Repository interface.
func (r *Repository) IndexWait(_ context.Context, name string, indexes ...string) error {
	t, err := r.table(name, "index_wait")
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, index := range indexes {
		if _, ok := t.indexes[index]; !ok {
			return repository.NewPersistenceError(name, "index_wait", errors.Wrapf(repository.ErrNoIndex, "index: '%s'", index))
		}
	}
	return nil
}

// Insert implements repository.Repository interface.
func (r *Repository) Insert(_ context.Context, name string, value map[string]interface{}, options ...repository.InsertOption) (*repository.Result, error) {
	t, err := r.table(name, "insert")
	if err != nil {
		return nil, err
	}
	o := repository.NewInsertOptions(options...)
	row := copyRow(value)
	result := &repository.Result{}

	pk, ok := row[t.primaryKey]
	if !ok || pk == nil {
		pk = uuid.New().String()
		row[t.primaryKey] = pk
		result.GeneratedKeys = append(result.GeneratedKeys, pk)
	}
	key := mapping.KeyString(pk)

	t.mu.Lock()
	defer t.mu.Unlock()
	old, exists := t.get(key)
	if exists && o.Conflict != repository.ConflictReplace {
		result.AddError(fmt.Sprintf("%s: `%s`: %v", repository.ErrDuplicateKey.Error(), t.primaryKey, pk))
		return result, nil
	}
	t.set(key, row)
	if exists {
		result.Replaced++
	} else {
		result.Inserted++
	}
	t.publish(key, result, old, row)
	return result, nil
}

// Replace implements repository.Repository interface.
func (r *Repository) Replace(_ context.Context, name string, pk interface{}, value map[string]interface{}) (*repository.Result, error) {
	t, err := r.table(name, "replace")
	if err != nil {
		return nil, err
	}
	row := copyRow(value)
	result := &repository.Result{}
	key := mapping.KeyString(pk)
	if rowPK, ok := row[t.primaryKey]; !ok || rowPK == nil {
		row[t.primaryKey] = pk
	} else if mapping.KeyString(rowPK) != key {
		result.AddError(fmt.Sprintf("primary key `%s` cannot be changed from: %v to: %v", t.primaryKey, pk, rowPK))
		return result, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	old, exists := t.get(key)
	switch {
	case !exists:
		result.Inserted++
	case reflect.DeepEqual(old, row):
		result.Unchanged++
		return result, nil
	default:
		result.Replaced++
	}
	t.set(key, row)
	t.publish(key, result, old, row)
	return result, nil
}

// Get implements repository.Repository interface.
func (r *Repository) Get(_ context.Context, name string, pk interface{}) (map[string]interface{}, error) {
	t, err := r.table(name, "get")
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.get(mapping.KeyString(pk))
	if !ok {
		return nil, errors.Wrapf(repository.ErrNotFound, "table: '%s' primary key: '%v'", name, pk)
	}
	return copyRow(row), nil
}

// Delete implements repository.Repository interface.
func (r *Repository) Delete(ctx context.Context, name string, pk interface{}) (*repository.Result, error) {
	return r.DeleteAll(ctx, name, pk)
}

// DeleteAll implements repository.Repository interface.
func (r *Repository) DeleteAll(_ context.Context, name string, pks ...interface{}) (*repository.Result, error) {
	t, err := r.table(name, "delete")
	if err != nil {
		return nil, err
	}
	result := &repository.Result{}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, pk := range pks {
		t.delete(mapping.KeyString(pk), result)
	}
	return result, nil
}

// ReplaceByIndex implements repository.Repository interface.
func (r *Repository) ReplaceByIndex(_ context.Context, name, index string, key interface{}, fn repository.ReplaceFunc) (*repository.Result, error) {
	t, err := r.indexedTable(name, index, "replace")
	if err != nil {
		return nil, err
	}
	result := &repository.Result{}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rowKey := range t.scan(index, key) {
		old, _ := t.get(rowKey)
		row := fn(copyRow(old))
		if mapping.KeyString(row[t.primaryKey]) != rowKey {
			result.AddError(fmt.Sprintf("primary key `%s` cannot be changed", t.primaryKey))
			continue
		}
		if reflect.DeepEqual(old, row) {
			result.Unchanged++
			continue
		}
		t.set(rowKey, row)
		result.Replaced++
		t.publish(rowKey, result, old, row)
	}
	return result, nil
}

// DeleteByIndex implements repository.Repository interface.
func (r *Repository) DeleteByIndex(_ context.Context, name, index string, key interface{}) (*repository.Result, error) {
	t, err := r.indexedTable(name, index, "delete")
	if err != nil {
		return nil, err
	}
	result := &repository.Result{}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rowKey := range t.scan(index, key) {
		t.delete(rowKey, result)
	}
	return result, nil
}

// Changes implements repository.Repository interface.
func (r *Repository) Changes(ctx context.Context, name string, pk interface{}) (repository.Feed, error) {
	t, err := r.table(name, "changes")
	if err != nil {
		return nil, err
	}
	sub := &subscription{key: mapping.KeyString(pk)}
	sub.feed = repository.NewQueueFeed(func() {
		t.mu.Lock()
		delete(t.feeds, sub)
		t.mu.Unlock()
	})
	t.mu.Lock()
	t.feeds[sub] = struct{}{}
	t.mu.Unlock()
	context.AfterFunc(ctx, func() {
		sub.feed.Close()
	})
	return sub.feed, nil
}

// Close implements repository.Repository interface.
func (r *Repository) Close(_ context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	tables := r.tables
	r.mu.Unlock()

	for _, t := range tables {
		t.mu.Lock()
		feeds := make([]*subscription, 0, len(t.feeds))
		for sub := range t.feeds {
			feeds = append(feeds, sub)
		}
		t.mu.Unlock()
		for _, sub := range feeds {
			sub.feed.Close()
		}
	}
	return nil
}

// HealthCheck implements repository.HealthChecker interface.
func (r *Repository) HealthCheck(_ context.Context) (*repository.HealthResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return repository.Failed("repository is closed"), nil
	}
	return repository.Passed(fmt.Sprintf("tables: %d", len(r.tables))), nil
}

func (r *Repository) table(name, operation string) (*table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, repository.NewPersistenceError(name, operation, repository.ErrClosed)
	}
	t, ok := r.tables[name]
	if !ok {
		return nil, repository.NewPersistenceError(name, operation, errors.Wrapf(repository.ErrNoTable, "table: '%s'", name))
	}
	return t, nil
}

func (r *Repository) indexedTable(name, index, operation string) (*table, error) {
	t, err := r.table(name, operation)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	_, ok := t.indexes[index]
	t.mu.Unlock()
	if !ok && index != t.primaryKey {
		return nil, repository.NewPersistenceError(name, operation, errors.Wrapf(repository.ErrNoIndex, "index: '%s'", index))
	}
	return t, nil
}

func (t *table) get(key string) (map[string]interface{}, bool) {
	v, ok := t.rows.Get(key)
	if !ok {
		return nil, false
	}
	return v.(map[string]interface{}), true
}

func (t *table) set(key string, row map[string]interface{}) {
	t.rows.Set(key, row, cache.NoExpiration)
}

func (t *table) delete(key string, result *repository.Result) {
	old, ok := t.get(key)
	if !ok {
		return
	}
	t.rows.Delete(key)
	result.Deleted++
	t.publish(key, result, old, nil)
}

// scan gets the sorted keys of the rows which 'index' field value equals to the 'key'.
func (t *table) scan(index string, key interface{}) []string {
	keyString := mapping.KeyString(key)
	var keys []string
	for rowKey, item := range t.rows.Items() {
		row := item.Object.(map[string]interface{})
		if v, ok := row[index]; ok && v != nil && mapping.KeyString(v) == keyString {
			keys = append(keys, rowKey)
		}
	}
	sort.Strings(keys)
	return keys
}

// publish adds the change to the result and pushes it to the row subscribers.
func (t *table) publish(key string, result *repository.Result, old, row map[string]interface{}) {
	change := repository.Change{OldValue: copyRow(old), NewValue: copyRow(row)}
	result.Changes = append(result.Changes, change)
	for sub := range t.feeds {
		if sub.key == key {
			sub.feed.Push(&repository.Change{OldValue: copyRow(old), NewValue: copyRow(row)})
		}
	}
}

func copyRow(row map[string]interface{}) map[string]interface{} {
	if row == nil {
		return nil
	}
	result := make(map[string]interface{}, len(row))
	for k, v := range row {
		result[k] = copyValue(v)
	}
	return result
}

func copyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return copyRow(v)
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, e := range v {
			result[i] = copyValue(e)
		}
		return result
	case []byte:
		result := make([]byte, len(v))
		copy(result, v)
		return result
	default:
		return v
	}
}
