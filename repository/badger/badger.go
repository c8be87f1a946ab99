// Package badger implements the repository on the embedded badger key-value store.
// The rows are stored msgpack encoded under the 't/<table>/<primary key>' keys,
// the table primary key names under 'm/<table>' and the secondary indexes under 'i/<table>/<field>'.
// The change feeds are served by the single store subscription of the row keys.
package badger

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/google/uuid"

	"github.com/neuronlabs/docorm/config"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/log"
	"github.com/neuronlabs/docorm/mapping"
	"github.com/neuronlabs/docorm/repository"
)

// DriverName is the name of the badger repository driver.
const DriverName = "badger"

const (
	rowPrefix   = "t/"
	metaPrefix  = "m/"
	indexPrefix = "i/"
	readyKey    = "s/ready"

	maxRetries   = 10
	readyTimeout = 5 * time.Second
)

var logger = log.NewModuleLogger("badger")

func init() {
	if err := repository.RegisterFactory(Factory{}); err != nil {
		log.Panicf("registering badger factory failed: %v", err)
	}
}

// Factory is the badger repository factory.
type Factory struct{}

// DriverName implements repository.Factory interface.
func (Factory) DriverName() string {
	return DriverName
}

// New implements repository.Factory interface.
func (Factory) New(cfg *config.Repository) (repository.Repository, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory || cfg.Path == "" {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	if sync, ok := cfg.Options["sync_writes"].(bool); ok {
		opts = opts.WithSyncWrites(sync)
	}
	return Open(opts)
}

// Compile time check for the repository interfaces.
var (
	_ repository.Repository    = &Repository{}
	_ repository.HealthChecker = &Repository{}
)

// Repository is the badger repository.
type Repository struct {
	db *badger.DB

	mu      sync.RWMutex
	tables  map[string]*table
	subs    map[string]map[*subscription]struct{}
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
	ready   chan struct{}
	readyMu sync.Once
}

type table struct {
	name       string
	primaryKey string
	indexes    map[string]struct{}
}

type subscription struct {
	feed *repository.QueueFeed
	last map[string]interface{}
}

// Open opens the badger store with provided options and starts its change subscription.
// The module logger is used as the store logger.
func Open(opts badger.Options) (*Repository, error) {
	db, err := badger.Open(opts.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrapf(repository.ErrRepository, "opening badger store failed: %v", err)
	}
	r := &Repository{
		db:     db,
		tables: make(map[string]*table),
		subs:   make(map[string]map[*subscription]struct{}),
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
	if err = r.loadTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err = r.subscribe(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// TableCreate implements repository.Repository interface.
func (r *Repository) TableCreate(_ context.Context, name, primaryKey string) error {
	if strings.Contains(name, "/") {
		return repository.NewPersistenceError(name, "table_create", errors.Wrapf(repository.ErrRepository, "invalid table name: '%s'", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return repository.NewPersistenceError(name, "table_create", repository.ErrClosed)
	}
	if _, ok := r.tables[name]; ok {
		return nil
	}
	err := r.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaPrefix+name), []byte(primaryKey))
	})
	if err != nil {
		return repository.NewPersistenceError(name, "table_create", err)
	}
	r.tables[name] = &table{name: name, primaryKey: primaryKey, indexes: make(map[string]struct{})}
	logger.Debug2f("table: '%s' created", name)
	return nil
}

// IndexCreate implements repository.Repository interface.
func (r *Repository) IndexCreate(_ context.Context, name, field string) error {
	t, err := r.table(name, "index_create")
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := t.indexes[field]; ok {
		return nil
	}
	err = r.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(indexPrefix+name+"/"+field), nil)
	})
	if err != nil {
		return repository.NewPersistenceError(name, "index_create", err)
	}
	t.indexes[field] = struct{}{}
	return nil
}

// IndexWait implements repository.Repository interface. The badger indexes are scans so they are ready once created.
func (r *Repository) IndexWait(_ context.Context, name string, indexes ...string) error {
	t, err := r.table(name, "index_wait")
	if err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
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
	row := make(map[string]interface{}, len(value)+1)
	for k, v := range value {
		row[k] = v
	}
	var generated interface{}
	if pk, ok := row[t.primaryKey]; !ok || pk == nil {
		generated = uuid.New().String()
		row[t.primaryKey] = generated
	}
	data, err := encodeRow(row)
	if err != nil {
		return nil, repository.NewPersistenceError(name, "insert", err)
	}
	key := rowKey(name, row[t.primaryKey])

	var result *repository.Result
	err = r.update(func(txn *badger.Txn) error {
		result = &repository.Result{}
		if generated != nil {
			result.GeneratedKeys = append(result.GeneratedKeys, generated)
		}
		old, err := getRow(txn, key)
		if err != nil {
			return err
		}
		if old != nil && o.Conflict != repository.ConflictReplace {
			result.AddError(fmt.Sprintf("%s: `%s`: %v", repository.ErrDuplicateKey.Error(), t.primaryKey, row[t.primaryKey]))
			return nil
		}
		if err = txn.Set(key, data); err != nil {
			return err
		}
		if old != nil {
			result.Replaced++
		} else {
			result.Inserted++
		}
		return addChange(result, old, data)
	})
	if err != nil {
		return nil, repository.NewPersistenceError(name, "insert", err)
	}
	return result, nil
}

// Replace implements repository.Repository interface.
func (r *Repository) Replace(_ context.Context, name string, pk interface{}, value map[string]interface{}) (*repository.Result, error) {
	t, err := r.table(name, "replace")
	if err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, len(value)+1)
	for k, v := range value {
		row[k] = v
	}
	if rowPK, ok := row[t.primaryKey]; !ok || rowPK == nil {
		row[t.primaryKey] = pk
	} else if mapping.KeyString(rowPK) != mapping.KeyString(pk) {
		result := &repository.Result{}
		result.AddError(fmt.Sprintf("primary key `%s` cannot be changed from: %v to: %v", t.primaryKey, pk, rowPK))
		return result, nil
	}
	data, err := encodeRow(row)
	if err != nil {
		return nil, repository.NewPersistenceError(name, "replace", err)
	}
	key := rowKey(name, pk)

	var result *repository.Result
	err = r.update(func(txn *badger.Txn) error {
		result = &repository.Result{}
		old, err := getRow(txn, key)
		if err != nil {
			return err
		}
		switch {
		case old == nil:
			result.Inserted++
		case bytes.Equal(old, data):
			result.Unchanged++
			return nil
		default:
			result.Replaced++
		}
		if err = txn.Set(key, data); err != nil {
			return err
		}
		return addChange(result, old, data)
	})
	if err != nil {
		return nil, repository.NewPersistenceError(name, "replace", err)
	}
	return result, nil
}

// Get implements repository.Repository interface.
func (r *Repository) Get(_ context.Context, name string, pk interface{}) (map[string]interface{}, error) {
	if _, err := r.table(name, "get"); err != nil {
		return nil, err
	}
	var data []byte
	err := r.db.View(func(txn *badger.Txn) (err error) {
		data, err = getRow(txn, rowKey(name, pk))
		return err
	})
	if err != nil {
		return nil, repository.NewPersistenceError(name, "get", err)
	}
	if data == nil {
		return nil, errors.Wrapf(repository.ErrNotFound, "table: '%s' primary key: '%v'", name, pk)
	}
	return decodeRow(data)
}

// Delete implements repository.Repository interface.
func (r *Repository) Delete(ctx context.Context, name string, pk interface{}) (*repository.Result, error) {
	return r.DeleteAll(ctx, name, pk)
}

// DeleteAll implements repository.Repository interface.
func (r *Repository) DeleteAll(_ context.Context, name string, pks ...interface{}) (*repository.Result, error) {
	if _, err := r.table(name, "delete"); err != nil {
		return nil, err
	}
	keys := make([][]byte, len(pks))
	for i, pk := range pks {
		keys[i] = rowKey(name, pk)
	}
	return r.deleteKeys(name, func(*badger.Txn) ([][]byte, error) { return keys, nil })
}

// ReplaceByIndex implements repository.Repository interface.
func (r *Repository) ReplaceByIndex(_ context.Context, name, index string, key interface{}, fn repository.ReplaceFunc) (*repository.Result, error) {
	t, err := r.indexedTable(name, index, "replace")
	if err != nil {
		return nil, err
	}
	var result *repository.Result
	err = r.update(func(txn *badger.Txn) error {
		result = &repository.Result{}
		matches, err := scan(txn, name, index, key)
		if err != nil {
			return err
		}
		for _, m := range matches {
			row := fn(m.row)
			if mapping.KeyString(row[t.primaryKey]) != mapping.KeyString(m.row[t.primaryKey]) {
				result.AddError(fmt.Sprintf("primary key `%s` cannot be changed", t.primaryKey))
				continue
			}
			data, err := encodeRow(row)
			if err != nil {
				return err
			}
			if bytes.Equal(data, m.data) {
				result.Unchanged++
				continue
			}
			if err = txn.Set(m.key, data); err != nil {
				return err
			}
			result.Replaced++
			if err = addChange(result, m.data, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, repository.NewPersistenceError(name, "replace", err)
	}
	return result, nil
}

// DeleteByIndex implements repository.Repository interface.
func (r *Repository) DeleteByIndex(_ context.Context, name, index string, key interface{}) (*repository.Result, error) {
	if _, err := r.indexedTable(name, index, "delete"); err != nil {
		return nil, err
	}
	return r.deleteKeys(name, func(txn *badger.Txn) ([][]byte, error) {
		matches, err := scan(txn, name, index, key)
		if err != nil {
			return nil, err
		}
		keys := make([][]byte, len(matches))
		for i, m := range matches {
			keys[i] = m.key
		}
		return keys, nil
	})
}

// Changes implements repository.Repository interface. The feed starts with the row value read on subscription,
// which is used as the old value of the first change.
func (r *Repository) Changes(ctx context.Context, name string, pk interface{}) (repository.Feed, error) {
	if _, err := r.table(name, "changes"); err != nil {
		return nil, err
	}
	id := string(rowKey(name, pk))
	sub := &subscription{}
	sub.feed = repository.NewQueueFeed(func() {
		r.mu.Lock()
		delete(r.subs[id], sub)
		if len(r.subs[id]) == 0 {
			delete(r.subs, id)
		}
		r.mu.Unlock()
	})

	r.mu.Lock()
	err := r.db.View(func(txn *badger.Txn) error {
		data, err := getRow(txn, []byte(id))
		if err != nil || data == nil {
			return err
		}
		sub.last, err = decodeRow(data)
		return err
	})
	if err != nil {
		r.mu.Unlock()
		return nil, repository.NewPersistenceError(name, "changes", err)
	}
	if r.subs[id] == nil {
		r.subs[id] = make(map[*subscription]struct{})
	}
	r.subs[id][sub] = struct{}{}
	r.mu.Unlock()

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
	var feeds []*repository.QueueFeed
	for _, subs := range r.subs {
		for sub := range subs {
			feeds = append(feeds, sub.feed)
		}
	}
	r.mu.Unlock()

	for _, feed := range feeds {
		feed.Close()
	}
	r.cancel()
	<-r.done
	if err := r.db.Close(); err != nil {
		return errors.Wrapf(repository.ErrRepository, "closing badger store failed: %v", err)
	}
	return nil
}

// HealthCheck implements repository.HealthChecker interface.
func (r *Repository) HealthCheck(_ context.Context) (*repository.HealthResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed || r.db.IsClosed() {
		return repository.Failed("badger store is closed"), nil
	}
	lsm, vlog := r.db.Size()
	return repository.Passed(fmt.Sprintf("tables: %d", len(r.tables)), fmt.Sprintf("lsm size: %d vlog size: %d", lsm, vlog)), nil
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
	r.mu.RLock()
	_, ok := t.indexes[index]
	r.mu.RUnlock()
	if !ok && index != t.primaryKey {
		return nil, repository.NewPersistenceError(name, operation, errors.Wrapf(repository.ErrNoIndex, "index: '%s'", index))
	}
	return t, nil
}

// update executes the read-write transaction, retrying on the transaction conflicts.
func (r *Repository) update(fn func(txn *badger.Txn) error) (err error) {
	for i := 0; i < maxRetries; i++ {
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		logger.Debug3f("transaction conflict, retrying: %d", i+1)
	}
	return err
}

func (r *Repository) deleteKeys(name string, keysFn func(txn *badger.Txn) ([][]byte, error)) (*repository.Result, error) {
	var result *repository.Result
	err := r.update(func(txn *badger.Txn) error {
		result = &repository.Result{}
		keys, err := keysFn(txn)
		if err != nil {
			return err
		}
		for _, key := range keys {
			old, err := getRow(txn, key)
			if err != nil {
				return err
			}
			if old == nil {
				continue
			}
			if err = txn.Delete(key); err != nil {
				return err
			}
			result.Deleted++
			if err = addChange(result, old, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, repository.NewPersistenceError(name, "delete", err)
	}
	return result, nil
}

func (r *Repository) loadTables() error {
	return r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(metaPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			pk, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			name := strings.TrimPrefix(string(item.Key()), metaPrefix)
			r.tables[name] = &table{name: name, primaryKey: string(pk), indexes: make(map[string]struct{})}
		}

		prefix = []byte(indexPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			parts := strings.SplitN(strings.TrimPrefix(string(it.Item().Key()), indexPrefix), "/", 2)
			if len(parts) != 2 {
				continue
			}
			if t, ok := r.tables[parts[0]]; ok {
				t.indexes[parts[1]] = struct{}{}
			}
		}
		logger.Debugf("loaded: %d tables", len(r.tables))
		return nil
	})
}

// subscribe starts the row keys subscription and waits until it receives the ready key write.
func (r *Repository) subscribe() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	matches := []pb.Match{{Prefix: []byte(rowPrefix)}, {Prefix: []byte(readyKey)}}
	go func() {
		defer close(r.done)
		if err := r.db.Subscribe(ctx, r.dispatch, matches); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("badger subscription failed: %v", err)
		}
	}()

	timeout := time.After(readyTimeout)
	for {
		err := r.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(readyKey), []byte(time.Now().UTC().Format(time.RFC3339Nano)))
		})
		if err != nil {
			cancel()
			return errors.Wrapf(repository.ErrRepository, "writing subscription ready key failed: %v", err)
		}
		select {
		case <-r.ready:
			return nil
		case <-timeout:
			cancel()
			return errors.Wrap(repository.ErrRepository, "badger subscription is not ready")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// dispatch pushes the committed row changes into the subscribed feeds.
func (r *Repository) dispatch(list *badger.KVList) error {
	for _, kv := range list.Kv {
		key := string(kv.Key)
		if key == readyKey {
			r.readyMu.Do(func() { close(r.ready) })
			continue
		}
		r.mu.Lock()
		for sub := range r.subs[key] {
			var newValue map[string]interface{}
			if len(kv.Value) > 0 {
				var err error
				if newValue, err = decodeRow(kv.Value); err != nil {
					logger.Errorf("decoding changed row: '%s' failed: %v", key, err)
					sub.feed.Fail(errors.Wrapf(repository.ErrRepository, "decoding changed row failed: %v", err))
					continue
				}
			}
			sub.feed.Push(&repository.Change{OldValue: sub.last, NewValue: newValue})
			sub.last = newValue
		}
		r.mu.Unlock()
	}
	return nil
}

type match struct {
	key  []byte
	data []byte
	row  map[string]interface{}
}

// scan gets the rows of the 'name' table which 'index' field value equals to the 'key'.
func scan(txn *badger.Txn, name, index string, key interface{}) ([]match, error) {
	keyString := mapping.KeyString(key)
	prefix := []byte(rowPrefix + name + "/")
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
	defer it.Close()

	var matches []match
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		data, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		row, err := decodeRow(data)
		if err != nil {
			return nil, err
		}
		if v, ok := row[index]; ok && v != nil && mapping.KeyString(v) == keyString {
			matches = append(matches, match{key: item.KeyCopy(nil), data: data, row: row})
		}
	}
	return matches, nil
}

func rowKey(name string, pk interface{}) []byte {
	return []byte(rowPrefix + name + "/" + mapping.KeyString(pk))
}

// getRow gets the encoded row. The nil result means that the row doesn't exist.
func getRow(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func addChange(result *repository.Result, old, data []byte) (err error) {
	change := repository.Change{}
	if old != nil {
		if change.OldValue, err = decodeRow(old); err != nil {
			return err
		}
	}
	if data != nil {
		if change.NewValue, err = decodeRow(data); err != nil {
			return err
		}
	}
	result.Changes = append(result.Changes, change)
	return nil
}
