package database

import (
	"context"
	"sync"
	"time"

	"github.com/neuronlabs/docorm/config"
	"github.com/neuronlabs/docorm/document"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/log"
	"github.com/neuronlabs/docorm/mapping"
	"github.com/neuronlabs/docorm/namer"
	"github.com/neuronlabs/docorm/repository"

	// Register the repository drivers.
	_ "github.com/neuronlabs/docorm/repository/badger"
	_ "github.com/neuronlabs/docorm/repository/memory"
)

// Cascade is the cascade scope tree of the save and delete operations.
type Cascade = document.Cascade

// Database stores the documents of the registered models within the repository.
type Database struct {
	options  *Options
	repo     repository.Repository
	registry *document.Registry

	mu     sync.RWMutex
	closed bool
}

// New creates new database for the models of the 'modelMap' stored within the repository 'repo'.
func New(repo repository.Repository, modelMap *mapping.ModelMap, options ...Option) (*Database, error) {
	if repo == nil {
		return nil, errors.WrapDet(ErrDatabase, "no repository provided", "")
	}
	if modelMap == nil {
		modelMap = mapping.NewModelMap(nil)
	}
	o := defaultOptions()
	for _, option := range options {
		option(o)
	}
	return &Database{
		options:  o,
		repo:     repo,
		registry: document.NewRegistry(modelMap),
	}, nil
}

// NewFromConfig creates new database from provided config. It sets up the logging level, registers the
// models and creates the repository with the configured driver.
func NewFromConfig(cfg *config.Config, options ...Option) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LogLevel != "" {
		if err := log.SetLevel(log.ParseLevel(cfg.LogLevel)); err != nil {
			return nil, err
		}
	}
	for module, level := range cfg.LogModules {
		log.SetModuleLevel(module, log.ParseLevel(level))
	}
	namerFunc, err := namer.Convention(cfg.NamingConvention)
	if err != nil {
		return nil, err
	}
	modelMap := mapping.NewModelMap(namerFunc)
	if cfg.Enforce != nil {
		if modelMap.DefaultEnforce, err = mapping.ParseEnforce(cfg.Enforce.Missing, cfg.Enforce.Extra, cfg.Enforce.Type); err != nil {
			return nil, err
		}
	}
	if err = modelMap.RegisterConfig(cfg.Models); err != nil {
		return nil, err
	}
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return nil, err
	}
	logger.Debugf("database created with: '%s' repository and: %d models", cfg.Repository.Driver, len(cfg.Models))
	options = append([]Option{WithMaxConcurrency(cfg.MaxConcurrency)}, options...)
	return New(repo, modelMap, options...)
}

// Registry gets the document models registry.
func (db *Database) Registry() *document.Registry {
	return db.registry
}

// ModelMap gets the model definitions map.
func (db *Database) ModelMap() *mapping.ModelMap {
	return db.registry.ModelMap()
}

// Repository gets the database repository.
func (db *Database) Repository() repository.Repository {
	return db.repo
}

// Model gets the document model by its 'name'.
func (db *Database) Model(name string) (*document.Model, error) {
	return db.registry.Model(name)
}

// NewDocument creates new document of the model 'name' with the 'fields' values and applies
// the default values of the missing fields.
func (db *Database) NewDocument(name string, fields map[string]interface{}) (*document.Document, error) {
	m, err := db.registry.Model(name)
	if err != nil {
		return nil, err
	}
	d := m.New(fields)
	document.ApplyDefaults(d)
	document.GenerateVirtual(d)
	return d, nil
}

// Get gets the document of the model 'name' with the primary key 'pk'.
func (db *Database) Get(ctx context.Context, name string, pk interface{}) (*document.Document, error) {
	if err := db.checkClosed(); err != nil {
		return nil, err
	}
	m, err := db.registry.Model(name)
	if err != nil {
		return nil, err
	}
	row, err := db.repo.Get(ctx, m.Table(), pk)
	if err != nil {
		logger.Debugf("getting: %s[%v] failed: %v", m.Name(), pk, err)
		return nil, err
	}
	d := m.New(row)
	d.MarkSaved(nil, row)
	document.GenerateVirtual(d)
	return d, nil
}

// Validate validates the document and its related documents in the cascade scope.
// With no 'cascade' provided all the relations are validated.
func (db *Database) Validate(ctx context.Context, d *document.Document, cascade ...Cascade) error {
	if err := db.checkModel(d); err != nil {
		return err
	}
	targets, all := scope(cascade)
	return document.Validate(ctx, d, targets, all)
}

// HealthCheck checks the repository health. Repositories that doesn't report their health always pass.
func (db *Database) HealthCheck(ctx context.Context) (*repository.HealthResponse, error) {
	if err := db.checkClosed(); err != nil {
		return repository.Failed("%v", err), nil
	}
	checker, ok := db.repo.(repository.HealthChecker)
	if !ok {
		return repository.Passed(), nil
	}
	ctx, cancelFunc := withTimeout(ctx, db.options.ReadyTimeout)
	defer cancelFunc()
	return checker.HealthCheck(ctx)
}

// Close closes the database repository.
func (db *Database) Close(ctx context.Context) error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	ctx, cancelFunc := withTimeout(ctx, db.options.CloseTimeout)
	defer cancelFunc()
	if err := db.repo.Close(ctx); err != nil {
		log.Errorf("Closing repository failed: %v", err)
		return err
	}
	logger.Debugf("database closed")
	return nil
}

func (db *Database) checkClosed() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return errors.WrapDet(ErrClosed, "database is already closed", "")
	}
	return nil
}

func (db *Database) checkModel(d *document.Document) error {
	if d == nil {
		return errors.WrapDet(ErrProgramming, "nil document provided", "")
	}
	if d.Model().Registry() != db.registry {
		return errors.Wrapf(ErrForeignModel, "model: '%s' is not registered within the database", d.Model().Name())
	}
	return db.checkClosed()
}

// scope gets the cascade targets. No 'cascade' means all the relations.
func scope(cascade []Cascade) (Cascade, bool) {
	if len(cascade) == 0 {
		return nil, true
	}
	return cascade[0], false
}

// withTimeout sets the 'timeout' on the context if no deadline is already set.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, deadlineSet := ctx.Deadline(); !deadlineSet {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
