package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv. The NEO4J_* names match the
// deployment scripts of the graph database.
const (
	EnvNeo4jURI      = "NEO4J_SERVER_URL"
	EnvNeo4jUser     = "NEO4J_USERNAME"
	EnvNeo4jPassword = "NEO4J_PASSWORD"
	EnvNeo4jDatabase = "NEO4J_DATABASE"

	EnvAddr         = "VIRTNET_ADDR"
	EnvSource       = "VIRTNET_SOURCE"
	EnvLogLevel     = "VIRTNET_LOG_LEVEL"
	EnvLogFormat    = "VIRTNET_LOG_FORMAT"
	EnvStorage      = "VIRTNET_STORAGE"
	EnvStoragePath  = "VIRTNET_STORAGE_PATH"
	EnvFixturePath  = "VIRTNET_FIXTURE"
	EnvOrgUnits     = "VIRTNET_ORG_UNITS"
	EnvAddressSpace = "VIRTNET_ADDRESS_SPACE"
	EnvNmapTargets  = "VIRTNET_NMAP_TARGETS"
	EnvQueryRate    = "VIRTNET_NEO4J_QPS"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with environment variables
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str(EnvNeo4jURI, &c.Neo4j.URI)
	str(EnvNeo4jUser, &c.Neo4j.Username)
	str(EnvNeo4jPassword, &c.Neo4j.Password)
	str(EnvNeo4jDatabase, &c.Neo4j.Database)
	str(EnvAddr, &c.Server.Addr)
	str(EnvSource, &c.Source)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)
	str(EnvStorage, &c.Storage.Backend)
	str(EnvStoragePath, &c.Storage.Path)
	str(EnvFixturePath, &c.Fixture.Path)
	list(EnvOrgUnits, &c.Neo4j.OrgUnits)
	list(EnvAddressSpace, &c.Neo4j.AddressSpace)
	list(EnvNmapTargets, &c.Nmap.Targets)

	if v, ok := lookup(EnvQueryRate); ok && v != "" {
		qps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvQueryRate, err)
		}
		c.Neo4j.QueriesPerSecond = qps
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Source = strings.ToLower(c.Source)
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
