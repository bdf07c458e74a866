package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/joshharrison/taskflow/internal/graph"
)

const (
	dirName   = ".taskflow"
	fileName  = "config.yaml"
	envPrefix = "TASKFLOW"
)

// Config is the full taskflow configuration.
type Config struct {
	// Dependency type applied to edges derived from declared dependencies.
	DefaultDependencyType string `yaml:"default_dependency_type" mapstructure:"default_dependency_type"`

	// Layout tried first when parsing task dates.
	DateLayout string `yaml:"date_layout" mapstructure:"date_layout"`

	// Treat warnings as failures in the CLI.
	Strict bool `yaml:"strict" mapstructure:"strict"`

	// Number of workflow files validated concurrently.
	Parallel int `yaml:"parallel" mapstructure:"parallel"`

	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Claude ClaudeConfig `yaml:"claude" mapstructure:"claude"`
}

// OutputConfig configures report rendering.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // text, json, dot, ascii
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ClaudeConfig configures dependency inference.
type ClaudeConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultDependencyType: graph.FinishToStart.String(),
		DateLayout:            "2006-01-02",
		Parallel:              4,
		Output:                OutputConfig{Format: "text"},
		Server:                ServerConfig{Addr: "127.0.0.1:8484"},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 4096,
		},
	}
}

// DependencyType parses DefaultDependencyType.
func (c *Config) DependencyType() graph.DependencyType {
	d, _ := graph.ParseDependencyType(c.DefaultDependencyType)
	return d
}

// Validate rejects values the engine cannot use.
func (c *Config) Validate() error {
	if _, err := graph.ParseDependencyType(c.DefaultDependencyType); err != nil {
		return errors.Wrap(err, "default_dependency_type")
	}
	switch c.Output.Format {
	case "text", "json", "dot", "ascii":
	default:
		return errors.Errorf("output.format: unsupported format %q", c.Output.Format)
	}
	if c.Parallel < 1 {
		return errors.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	return nil
}

// Load merges the global config, the project config and TASKFLOW_* environment
// variables over the defaults. Missing files are not an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if home, err := os.UserHomeDir(); err == nil {
		if err := loadFile(filepath.Join(home, dirName, fileName), cfg); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, err
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if err := loadFile(filepath.Join(cwd, dirName, fileName), cfg); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// LoadFile loads a single explicit config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration in %s", path)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}

	return errors.Wrapf(v.Unmarshal(cfg), "decode config %s", path)
}

// applyEnv overlays TASKFLOW_* variables, e.g. TASKFLOW_OUTPUT_FORMAT=json.
func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	keys := []string{
		"default_dependency_type",
		"date_layout",
		"strict",
		"parallel",
		"output.format",
		"server.addr",
		"claude.model",
		"claude.max_tokens",
	}
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return errors.Wrapf(err, "bind env %s", k)
		}
	}

	// Only keys that are actually set override the file values.
	set := make(map[string]interface{})
	for _, k := range keys {
		if v.IsSet(k) {
			set[k] = v.Get(k)
		}
	}
	if len(set) == 0 {
		return nil
	}

	overlay := viper.New()
	for k, val := range set {
		overlay.Set(k, val)
	}
	return errors.Wrap(overlay.Unmarshal(cfg), "decode environment overrides")
}
