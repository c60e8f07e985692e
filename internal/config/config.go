// Package config provides configuration management for virtnet.
//
// Settings come from three layers, later ones winning:
//   - a YAML config file (see SearchPaths)
//   - a .env file and the process environment (see ApplyEnv)
//   - command-line flags, applied by the caller
//
// Config file locations (priority order):
//  1. $VIRTNET_CONFIG
//  2. ./virtnet.yaml
//  3. ~/.config/virtnet/config.yaml
//  4. /etc/virtnet/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

const (
	defaultJSONPath   = "data/virtualNetwork.json"
	defaultSQLitePath = "data/virtnet.db"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes a YAML document over the defaults
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			SourceTimeout:   Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Source: "neo4j",
		Neo4j: Neo4jConfig{
			URI:              "bolt://localhost:7687",
			Username:         "neo4j",
			QueriesPerSecond: 20,
			Burst:            5,
		},
		Nmap: NmapConfig{
			Timeout: Duration(10 * time.Minute),
		},
		Storage: StorageConfig{
			Backend: "jsonfile",
			Path:    defaultJSONPath,
		},
	}
}

// applyDefaults fills in values a config file left empty
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == 0 {
		c.Version = def.Version
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Server.SourceTimeout <= 0 {
		c.Server.SourceTimeout = def.Server.SourceTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Source == "" {
		c.Source = def.Source
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.Path == "" || (c.Storage.Backend == "sqlite" && c.Storage.Path == defaultJSONPath) {
		c.Storage.Path = defaultJSONPath
		if c.Storage.Backend == "sqlite" {
			c.Storage.Path = defaultSQLitePath
		}
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Source = strings.ToLower(c.Source)
}

// Validate checks field constraints and the settings the selected source needs
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Source {
	case "neo4j":
		if c.Neo4j.URI == "" {
			return errors.New("invalid config: neo4j.uri is required for the neo4j source")
		}
	case "fixture":
		if c.Fixture.Path == "" {
			return errors.New("invalid config: fixture.path is required for the fixture source")
		}
	case "nmap":
		if len(c.Nmap.Targets) == 0 {
			return errors.New("invalid config: nmap.targets is required for the nmap source")
		}
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Listen: %s, Source: %s", c.Server.Addr, c.Source)
	switch c.Source {
	case "neo4j":
		summary += fmt.Sprintf(" (%s, org units %v)", c.Neo4j.URI, c.Neo4j.OrgUnits)
	case "fixture":
		summary += fmt.Sprintf(" (%s)", c.Fixture.Path)
	case "nmap":
		summary += fmt.Sprintf(" (%d targets)", len(c.Nmap.Targets))
	}
	summary += fmt.Sprintf(", Storage: %s at %s, Log: %s/%s",
		c.Storage.Backend, c.Storage.Path, c.Log.Level, c.Log.Format)
	return summary
}
