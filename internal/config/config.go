// Package config holds reddb's server configuration: the fields settable
// by CLI flags in cmd/reddb-server and, optionally, by a YAML config
// file.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the full set of server-startup parameters: listen host,
// listen port, max concurrent clients, initial password (or none), the
// snapshot dump directory, and the periodic-dump interval.
type Config struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	MaxClients       int    `yaml:"max_clients"`
	Password         string `yaml:"password"`
	DumpDir          string `yaml:"dump_dir"`
	TimeDumpInterval int    `yaml:"time_dump_interval"`
}

// Default returns the default endpoint (127.0.0.1:7100), a 64-slot
// worker pool, and password protection disabled.
func Default() Config {
	return Config{
		Host:       "127.0.0.1",
		Port:       7100,
		MaxClients: 64,
	}
}

// LoadFile reads a YAML config file, overlaying its fields onto base.
// Zero-valued fields in the file (an absent key) leave base's value
// untouched, so a file only needs to mention the settings it overrides.
func LoadFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return base, fmt.Errorf("parsing config file: %w", err)
	}

	merged := base
	if overlay.Host != "" {
		merged.Host = overlay.Host
	}
	if overlay.Port != 0 {
		merged.Port = overlay.Port
	}
	if overlay.MaxClients != 0 {
		merged.MaxClients = overlay.MaxClients
	}
	if overlay.Password != "" {
		merged.Password = overlay.Password
	}
	if overlay.DumpDir != "" {
		merged.DumpDir = overlay.DumpDir
	}
	if overlay.TimeDumpInterval != 0 {
		merged.TimeDumpInterval = overlay.TimeDumpInterval
	}
	return merged, nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
