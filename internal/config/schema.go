package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version int           `yaml:"version"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Source  string        `yaml:"source" validate:"oneof=neo4j fixture nmap"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
	Fixture FixtureConfig `yaml:"fixture"`
	Nmap    NmapConfig    `yaml:"nmap"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string   `yaml:"addr" validate:"required"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	// SourceTimeout bounds each neighbor source call made by an expansion
	SourceTimeout Duration `yaml:"source_timeout"`
	CORSOrigins   []string `yaml:"cors_origins,omitempty"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=console json"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// Neo4jConfig holds graph database settings
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	// OrgUnits are the organization unit names shown on initial population
	OrgUnits []string `yaml:"org_units"`
	// AddressSpace limits subnets and hosts to these ranges
	AddressSpace     []string `yaml:"address_space" validate:"dive,cidrv4"`
	QueriesPerSecond float64  `yaml:"queries_per_second" validate:"gte=0"`
	Burst            int      `yaml:"burst" validate:"gte=0"`
}

// FixtureConfig holds the graph file served by the fixture source
type FixtureConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// NmapConfig holds live scan settings
type NmapConfig struct {
	Targets           []string `yaml:"targets"`
	Ports             string   `yaml:"ports,omitempty"`
	Timeout           Duration `yaml:"timeout"`
	ServiceDetection  *bool    `yaml:"service_detection,omitempty"`
	OSDetection       bool     `yaml:"os_detection"`
	SkipHostDiscovery bool     `yaml:"skip_host_discovery"`
}

// StorageConfig selects where the snapshot is persisted
type StorageConfig struct {
	Backend string `yaml:"backend" validate:"oneof=jsonfile sqlite"`
	Path    string `yaml:"path" validate:"required"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
