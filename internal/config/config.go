// Package config loads configuration for the rupy command.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/feather-lang/rupy/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. RUPY_LOGGING_LEVEL.
const EnvPrefix = "RUPY_"

const maxConfigFileSize = 1024 * 1024

// Config is the full command configuration.
type Config struct {
	Bridge  BridgeConfig   `koanf:"bridge"`
	Logging logging.Config `koanf:"logging"`
	Metrics MetricsConfig  `koanf:"metrics"`
}

// BridgeConfig configures the guest bridge.
type BridgeConfig struct {
	LegacyMode bool `koanf:"legacy_mode"`
}

// MetricsConfig configures the prometheus metrics of the bridge.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

const defaults = `
bridge:
  legacy_mode: false
logging:
  level: info
  format: console
metrics:
  enabled: false
  namespace: rupy
`

var namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load reads configuration with this precedence, highest first:
//  1. Environment variables (RUPY_BRIDGE_LEGACY_MODE, RUPY_LOGGING_LEVEL, ...)
//  2. The YAML file at path, if path is not empty
//  3. Built-in defaults
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		content, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// RUPY_LOGGING_LEVEL -> logging.level, RUPY_BRIDGE_LEGACY_MODE -> bridge.legacy_mode
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if c.Metrics.Enabled && !namespacePattern.MatchString(c.Metrics.Namespace) {
		errs = append(errs, fmt.Errorf("metrics: invalid namespace %q", c.Metrics.Namespace))
	}
	return errors.Join(errs...)
}
