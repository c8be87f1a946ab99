package config

// Repository defines the repository configuration variables.
type Repository struct {
	// Driver defines the name of the repository driver. Allowed values:
	// - memory
	// - badger
	Driver string `mapstructure:"driver" validate:"oneof=memory badger"`

	// Path is the directory used by persistent drivers.
	Path string `mapstructure:"path"`

	// InMemory keeps the persistent driver's data in memory only.
	InMemory bool `mapstructure:"in_memory"`

	// Options contains driver dependent specific options.
	Options map[string]interface{} `mapstructure:"options"`
}
