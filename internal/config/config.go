// Package config provides configuration management for cfgsnap using Viper.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/thoreinstein/cfgsnap/internal/paths"
)

// AppName is the application name used for config file naming.
const AppName = "cfgsnap"

// Config represents the top-level configuration structure.
type Config struct {
	Version int `mapstructure:"version" yaml:"version"`

	// StorageDir is the root directory for the snapshot store.
	// Empty means the XDG data directory default.
	StorageDir string `mapstructure:"storage_dir" yaml:"storage_dir"`

	// RetentionCount is the number of snapshots `prune` keeps per identity
	// when no --keep flag is given.
	RetentionCount int `mapstructure:"retention_count" yaml:"retention_count"`

	// DefaultFormat is the payload format assumed when a file's extension
	// is not recognized: json, yaml, or toml.
	DefaultFormat string `mapstructure:"default_format" yaml:"default_format"`
}

// DefaultRetentionCount is the retention used when the config file sets none.
const DefaultRetentionCount = 5

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	viper.AddConfigPath(".")
	viper.AddConfigPath(filepath.Join(paths.ConfigHome(), AppName))

	viper.SetEnvPrefix("CFGSNAP")
	viper.AutomaticEnv()

	viper.SetDefault("version", 1)
	viper.SetDefault("storage_dir", "")
	viper.SetDefault("retention_count", DefaultRetentionCount)
	viper.SetDefault("default_format", "json")
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations.
// Returns the loaded configuration or default values if no file is found (when path is empty).
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// A missing file is only an error when the user named one.
			if path != "" {
				return nil, fmt.Errorf("config file not found at %s: %w", path, err)
			}
		} else {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// ResolveStorageDir returns the effective snapshot store root.
func (c *Config) ResolveStorageDir() string {
	if c.StorageDir != "" {
		return c.StorageDir
	}
	return paths.StoreRoot()
}
