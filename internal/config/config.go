package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for a tarifcheck run.
type Config struct {
	DSN           string
	DataDir       string `yaml:"data_dir"`
	RequestFile   string
	ListenAddr    string `yaml:"listen_addr"`
	LogFormat     string // "text" or "json"
	Debug         bool
	OutputJSON    bool
	MaxNearMisses int `yaml:"max_near_misses"`
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	DataDir       string `yaml:"data_dir"`
	ListenAddr    string `yaml:"listen_addr"`
	MaxNearMisses int    `yaml:"max_near_misses"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Flags already set on the Config take precedence over file values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if c.DataDir == "" {
		c.DataDir = yc.DataDir
	}
	if c.ListenAddr == "" {
		c.ListenAddr = yc.ListenAddr
	}
	if c.MaxNearMisses == 0 {
		c.MaxNearMisses = yc.MaxNearMisses
	}
	if c.MaxNearMisses < 0 {
		return fmt.Errorf("max_near_misses must not be negative, got %d", c.MaxNearMisses)
	}
	return nil
}

// Validate checks the fields every data-dir command needs.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("--data-dir is required")
	}
	info, err := os.Stat(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", c.DataDir)
	}
	return nil
}

// ValidateWithDSN checks both data dir and DSN fields.
func (c *Config) ValidateWithDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or TARIF_DB_URL is required")
	}
	return nil
}
