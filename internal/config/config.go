// Package config loads netmeta-mcp server configuration from a YAML file.
// Every field has a working default; a missing config file is not an
// error.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all netmeta-mcp configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Server  ServerConfig  `yaml:"server"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures the R bridge.
type EngineConfig struct {
	// Path overrides R executable location. Empty means auto-locate.
	Path string `yaml:"path"`

	// StatePath overrides the session state file. Empty means the
	// well-known location in the OS temp directory.
	StatePath string `yaml:"state_path"`

	// Timeout bounds each R invocation, e.g. "120s". Empty or "0" means
	// no timeout: a hung invocation blocks its caller indefinitely.
	Timeout string `yaml:"timeout"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// AuditConfig configures the invocation log.
type AuditConfig struct {
	// DatabasePath is the SQLite file for tool call records. Empty
	// disables auditing.
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{HTTPAddr: ":8000"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from path. A missing file returns defaults; a
// present but unparseable file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// EngineTimeout parses the engine timeout. Zero means unbounded.
func (c *Config) EngineTimeout() (time.Duration, error) {
	if c.Engine.Timeout == "" || c.Engine.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Engine.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid engine timeout %q: %w", c.Engine.Timeout, err)
	}
	return d, nil
}
