package config

import (
	"github.com/spf13/viper"

	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/log"
)

// ViperSetDefaults sets the default values for the viper config.
func ViperSetDefaults(v *viper.Viper) {
	setDefaults(v)
}

// ReadNamedConfig reads the config with the provided name from the working directory
// or the 'configs' directory.
func ReadNamedConfig(name string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.AddConfigPath(".")
	v.AddConfigPath("configs")
	return read(v)
}

// ReadConfig reads the config file at given 'path'.
func ReadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return read(v)
}

// Default returns the default configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		log.Debugf("Unmarshaling Config failed: %v", err)
		panic(err)
	}
	return c
}

func read(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(ErrConfig, "reading config failed: %v", err)
	}
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		log.Debugf("Unmarshaling Config failed. %v", err)
		return nil, errors.Wrapf(ErrConfig, "unmarshaling config failed: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	keys := map[string]interface{}{
		"log_level":         "info",
		"naming_convention": "snake",
		"max_concurrency":   8,
		"enforce.missing":   false,
		"enforce.extra":     "none",
		"enforce.type":      "loose",
		"repository.driver": "memory",
	}
	for k, value := range keys {
		v.SetDefault(k, value)
	}
}
