// Package config provides configuration loading from YAML files.
package config

import (
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/saloon/internal/domain/table"
)

// Config represents the application configuration.
type Config struct {
	Store     StoreConfig             `yaml:"store"`
	Pricing   PricingConfig           `yaml:"pricing"`
	Admission map[string]FilterConfig `yaml:"admission"`
	Tables    []TableConfig           `yaml:"tables" validate:"dive"`
	Metrics   MetricsConfig           `yaml:"metrics"`
	Hooks     HooksConfig             `yaml:"hooks"`
	Shell     ShellConfig             `yaml:"shell"`
}

// StoreConfig selects where tables and their history are kept.
type StoreConfig struct {
	Driver string `yaml:"driver" default:"json" validate:"oneof=json sqlite"`
	Path   string `yaml:"path" default:"tables.json" validate:"required"`
}

// PricingConfig selects the pricing policy.
type PricingConfig struct {
	Policy   string         `yaml:"policy" default:"standard" validate:"required"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// FilterConfig represents an admission filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// TableConfig is a table created when nothing is stored yet.
type TableConfig struct {
	Name       string  `yaml:"name" validate:"required"`
	Kind       string  `yaml:"kind" default:"Billiard"`
	HourlyRate float64 `yaml:"hourly_rate" validate:"gte=0"`
}

// MetricsConfig represents the Prometheus endpoint configuration.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
	Path string `yaml:"path" default:"/metrics"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ShellConfig represents the interactive shell configuration.
type ShellConfig struct {
	Prompt   string `yaml:"prompt" default:"saloon> "`
	Currency string `yaml:"currency" default:"€"`
}

// DefaultTables returns the tables a fresh hall starts with.
func DefaultTables() []TableConfig {
	return []TableConfig{
		{Name: "Table 1", Kind: "Billiard", HourlyRate: 10},
		{Name: "Table 2", Kind: "Snooker", HourlyRate: 10},
		{Name: "Table 3", Kind: "Darts", HourlyRate: 10},
	}
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Admission: map[string]FilterConfig{
			"party_size_filter": {Enabled: true},
		},
	}
	cfg.overrideFromEnv()
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = DefaultTables()
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// LoadOrDefault loads the config file, or returns Default when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	// Default has no user input, so Set cannot fail on it.
	_ = defaults.Set(c)
	if len(c.Tables) == 0 {
		c.Tables = DefaultTables()
	}
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SALOON_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("SALOON_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("SALOON_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	for i, t := range c.Tables {
		if _, err := table.ParseKind(t.Kind); err != nil {
			return errors.Wrapf(err, "tables[%d]", i)
		}
	}
	return nil
}

// IsFilterEnabled checks if an admission filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Admission[filterName]; ok {
		return f.Enabled
	}
	return false
}
