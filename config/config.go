package config

import (
	"gopkg.in/go-playground/validator.v9"

	"github.com/neuronlabs/docorm/errors"
)

var (
	// ErrConfig is the error classification for the configuration.
	ErrConfig = errors.New("config")
	// ErrInvalidConfig is the error classification for the configurations that didn't pass validation.
	ErrInvalidConfig = errors.Wrap(ErrConfig, "invalid")
)

// Config contains general configurations for the docorm database.
type Config struct {
	// LogLevel is the current logging level.
	LogLevel string `mapstructure:"log_level" validate:"isdefault|oneof=debug3 debug2 debug info warning error critical"`

	// LogModules sets the logging levels of the chosen modules i.e. 'database: debug2'.
	LogModules map[string]string `mapstructure:"log_modules" validate:"dive,oneof=debug3 debug2 debug info warning error critical"`

	// NamingConvention is the naming convention used while preparing the table names.
	// Allowed values:
	// - camel
	// - lowercamel
	// - snake
	// - kebab
	NamingConvention string `mapstructure:"naming_convention" validate:"isdefault|oneof=camel lowercamel snake kebab"`

	// MaxConcurrency limits the number of concurrent repository operations within a single
	// cascade step. Non positive value means no limit.
	MaxConcurrency int `mapstructure:"max_concurrency"`

	// Enforce is the default schema enforcement policy for all models.
	Enforce *Enforce `mapstructure:"enforce"`

	// Repository defines the repository used by the database.
	Repository *Repository `mapstructure:"repository" validate:"required"`

	// Models defines the model's configurations.
	Models map[string]*ModelConfig `mapstructure:"models" validate:"dive"`
}

// Enforce is the schema enforcement policy.
type Enforce struct {
	// Missing marks all schema fields as required.
	Missing bool `mapstructure:"missing"`
	// Extra defines the reaction on the fields not defined within the schema.
	// - none - the fields are kept
	// - remove - the fields are dropped from the saved value
	// - strict - the validation fails
	Extra string `mapstructure:"extra" validate:"isdefault|oneof=none remove strict"`
	// Type defines the type checking strictness.
	// - none - no type checks
	// - loose - the value must match the type or be null
	// - strict - the value must match the type
	Type string `mapstructure:"type" validate:"isdefault|oneof=none loose strict"`
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	return nil
}
