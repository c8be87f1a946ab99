package repository

import (
	"github.com/neuronlabs/docorm/config"
)

// Factory is the interface used for creating the repositories.
type Factory interface {
	// DriverName gets the driver name for given factory.
	DriverName() string
	// New creates new repository for the given 'config'.
	New(config *config.Repository) (Repository, error)
}
