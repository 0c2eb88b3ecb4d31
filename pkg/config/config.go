package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigName is the name of the configuration file Load looks for
	// in the given directory.
	DefaultConfigName = "arcgo.yml"
	// DefaultTombstoneCacheSize is the default number of finalized object
	// descriptions kept for use-after-free diagnostics.
	DefaultTombstoneCacheSize = 1024
)

// Version is the version of arcgo, it's overridden at build time.
var Version = "dev"

// Config is the top level struct representing the arcgo configuration.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
	Manager                  ManagerConfiguration     `yaml:"Manager"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel:    "info",
			LogEncoding: "console",
		},
		Manager: ManagerConfiguration{
			TombstoneCacheSize: DefaultTombstoneCacheSize,
		},
	}
}

// Load attempts to load the config from the given directory, it looks for
// DefaultConfigName there.
func Load(path string) (Config, error) {
	return LoadFile(filepath.Join(path, DefaultConfigName))
}

// LoadFile loads config from the provided path. Unknown fields are rejected,
// fields missing from the file keep their default values.
func LoadFile(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate checks Config for internal consistency.
func (c Config) Validate() error {
	if err := c.ApplicationConfiguration.Validate(); err != nil {
		return err
	}
	return c.Manager.Validate()
}
