// Package config loads decap settings from an optional decap.yaml, DECAP_*
// environment variables and command-line flags, using viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the working directory.
const FileName = "decap"

// EnvPrefix prefixes environment overrides, e.g. DECAP_LOG_LEVEL.
const EnvPrefix = "DECAP"

// Config holds all settings.
type Config struct {
	DB              string    `mapstructure:"db"`
	Include         []string  `mapstructure:"include"`
	Exclude         []string  `mapstructure:"exclude"`
	PublicModifiers []string  `mapstructure:"public_modifiers"`
	AccessorNames   bool      `mapstructure:"accessor_names"`
	Log             LogConfig `mapstructure:"log"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ConfigError reports an invalid setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// New returns a viper instance with defaults and environment overrides set.
// Flags may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("db", ".decap/history.db")
	v.SetDefault("include", []string{"**/*.java"})
	v.SetDefault("exclude", []string{})
	v.SetDefault("public_modifiers", []string{"public"})
	v.SetDefault("accessor_names", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file and returns the merged settings. An explicit
// path must exist; otherwise decap.yaml in the working directory is optional.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.DB == "" {
		return &ConfigError{Field: "db", Message: "must not be empty"}
	}
	if len(c.PublicModifiers) == 0 {
		return &ConfigError{Field: "public_modifiers", Message: "must name at least one modifier"}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &ConfigError{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	return nil
}
