// Package config loads warehouse definitions and CLI settings from
// warehouses.yaml, WAREHOUSE_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

// WarehouseConfig is one entry of the warehouses list. Credentials are kept
// raw until DataSources decodes them, so ${VAR} references can be expanded
// first.
type WarehouseConfig struct {
	Name        string         `koanf:"name"`
	Credentials map[string]any `koanf:"credentials"`
	Config      map[string]any `koanf:"config"`
}

// Config holds the loaded configuration.
type Config struct {
	Default    string            `koanf:"default"`
	Verbose    bool              `koanf:"verbose"`
	Output     string            `koanf:"output"`
	Warehouses []WarehouseConfig `koanf:"warehouses"`

	// Path is the config file that was read, empty if none.
	Path string `koanf:"-"`
}

// Validate checks warehouse names. Credentials are checked by DataSources.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Warehouses))
	for i, w := range c.Warehouses {
		if w.Name == "" {
			return fmt.Errorf("warehouse #%d has no name\nHint: Every entry under 'warehouses' needs a 'name'", i+1)
		}
		if seen[w.Name] {
			return &core.DuplicateDataSourceError{Name: w.Name}
		}
		seen[w.Name] = true
	}
	if c.Default != "" && !seen[c.Default] {
		return fmt.Errorf("default warehouse '%s' is not defined\nHint: Set 'default' to one of the configured warehouse names", c.Default)
	}
	return nil
}

// DataSources decodes every warehouse into a core.DataSourceConfig.
func (c *Config) DataSources() ([]core.DataSourceConfig, error) {
	out := make([]core.DataSourceConfig, 0, len(c.Warehouses))
	for _, w := range c.Warehouses {
		creds, err := adapter.DecodeCredentials(expandMap(w.Credentials))
		if err != nil {
			return nil, fmt.Errorf("warehouse '%s': %w", w.Name, err)
		}
		out = append(out, core.DataSourceConfig{
			Name:        w.Name,
			Type:        creds.Type(),
			Credentials: creds,
			Config:      w.Config,
		})
	}
	return out, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandMap returns a copy of m with ${VAR} expanded in every string value.
func expandMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case string:
			out[k] = expandEnvVars(v)
		case map[string]any:
			out[k] = expandMap(v)
		default:
			out[k] = v
		}
	}
	return out
}
