package dao

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/transport"
)

// AccessConfig describes how the facade reaches its backend. It is also the
// schema of the alertidx.yaml config file.
type AccessConfig struct {
	// Adapter is "memory", "kv", "fs" or "http". Empty infers it from URI.
	Adapter      string        `yaml:"adapter,omitempty"`
	URI          string        `yaml:"uri,omitempty"`
	DefaultIndex string        `yaml:"default_index,omitempty"`
	Format       string        `yaml:"format,omitempty"`
	ReadOnly     bool          `yaml:"read_only,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`

	// Indices maps sensor types (or glob patterns) to index names.
	Indices map[string]string `yaml:"indices,omitempty"`
	// MappingFile is a YAML mapping reloaded on change. It takes precedence over Indices.
	MappingFile string `yaml:"mapping_file,omitempty"`

	// Kerberos enables SPNEGO authentication for the http adapter when set.
	Kerberos *transport.KerberosConfig `yaml:"kerberos,omitempty"`

	// Concurrency bounds parallel lookups and batch writes. Zero keeps the defaults.
	Concurrency int  `yaml:"concurrency,omitempty"`
	CheckAndSet bool `yaml:"check_and_set,omitempty"`
	MaxResults  int  `yaml:"max_results,omitempty"`
}

// KerberosEnabled reports whether Kerberos must be installed.
func (c AccessConfig) KerberosEnabled() bool {
	return c.Kerberos != nil
}

// LoadConfig reads an AccessConfig from a YAML file.
func LoadConfig(path string) (AccessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AccessConfig{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg AccessConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AccessConfig{}, fmt.Errorf("%w: config %s: %v", core.ErrInvalidRequest, path, err)
	}
	return cfg, nil
}
