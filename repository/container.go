package repository

import (
	"sync"

	"github.com/neuronlabs/docorm/config"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/log"
)

var ctr = newContainer()

// RegisterFactory registers provided Factory within the container.
func RegisterFactory(f Factory) error {
	log.Debugf("Registering factory: '%s'", f.DriverName())
	return ctr.registerFactory(f)
}

// GetFactory gets the factory with given driver 'name'.
func GetFactory(name string) Factory {
	ctr.mu.RLock()
	defer ctr.mu.RUnlock()
	return ctr.factories[name]
}

// New creates new repository with the factory of the config's driver.
func New(cfg *config.Repository) (Repository, error) {
	f := GetFactory(cfg.Driver)
	if f == nil {
		return nil, errors.Wrapf(ErrUnknownDriver, "driver: '%s'", cfg.Driver)
	}
	return f.New(cfg)
}

// container contains the factories mapped by their driver names.
type container struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func newContainer() *container {
	return &container{factories: map[string]Factory{}}
}

func (c *container) registerFactory(f Factory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.factories[f.DriverName()]; ok {
		return errors.Wrapf(ErrFactory, "factory: '%s' already registered", f.DriverName())
	}
	c.factories[f.DriverName()] = f
	return nil
}
