// Package config loads CLI settings. Values are layered, later layers
// winning: built-in defaults, the YAML file, TOOLSPEC_* environment
// variables, then command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wilhg/toolspec/pkg/convert"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/logging"
)

// Descriptor sources.
const (
	SourceGo       = "go"
	SourceManifest = "manifest"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TOOLSPEC_"

// Config is the full CLI configuration.
type Config struct {
	Source         string        `yaml:"source"`
	Manifest       string        `yaml:"manifest,omitempty"`
	Dir            string        `yaml:"dir,omitempty"`
	Recursive      bool          `yaml:"recursive"`
	BuildTags      []string      `yaml:"build_tags,omitempty"`
	IncludePrivate bool          `yaml:"include_private"`
	Filter         string        `yaml:"filter,omitempty"`
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model,omitempty"`
	APIKey         string        `yaml:"api_key,omitempty"`
	MaxRetries     int           `yaml:"max_retries"`
	BackoffUnit    time.Duration `yaml:"backoff_unit"`
	Store          string        `yaml:"store,omitempty"`
	PromptsDir     string        `yaml:"prompts_dir,omitempty"`
	LogLevel       string        `yaml:"log_level"`
	LogJSON        bool          `yaml:"log_json"`
	Trace          bool          `yaml:"trace"`
}

// Defaults returns the built-in configuration. The openai provider is
// selected but without a credential every group uses the fallback.
func Defaults() Config {
	return Config{
		Source:      SourceGo,
		Provider:    "openai",
		MaxRetries:  3,
		BackoffUnit: time.Second,
		LogLevel:    "info",
	}
}

// Load reads path over Defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, errmodel.Validation("config_missing", fmt.Sprintf("config file %s does not exist", path), nil)
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	logging.Debug("config", "loaded configuration from %s", path)
	return cfg, nil
}

type binding struct {
	name string
	set  func(c *Config, v string) error
}

func str(p func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *p(c) = v; return nil }
}

func boolean(p func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*p(c) = b
		return nil
	}
}

var bindings = []binding{
	{"SOURCE", str(func(c *Config) *string { return &c.Source })},
	{"MANIFEST", str(func(c *Config) *string { return &c.Manifest })},
	{"DIR", str(func(c *Config) *string { return &c.Dir })},
	{"RECURSIVE", boolean(func(c *Config) *bool { return &c.Recursive })},
	{"BUILD_TAGS", func(c *Config, v string) error { c.BuildTags = SplitList(v); return nil }},
	{"INCLUDE_PRIVATE", boolean(func(c *Config) *bool { return &c.IncludePrivate })},
	{"FILTER", str(func(c *Config) *string { return &c.Filter })},
	{"PROVIDER", str(func(c *Config) *string { return &c.Provider })},
	{"MODEL", str(func(c *Config) *string { return &c.Model })},
	{"API_KEY", str(func(c *Config) *string { return &c.APIKey })},
	{"MAX_RETRIES", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.MaxRetries = n
		return nil
	}},
	{"BACKOFF_UNIT", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.BackoffUnit = d
		return nil
	}},
	{"STORE", str(func(c *Config) *string { return &c.Store })},
	{"PROMPTS_DIR", str(func(c *Config) *string { return &c.PromptsDir })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel })},
	{"LOG_JSON", boolean(func(c *Config) *bool { return &c.LogJSON })},
	{"TRACE", boolean(func(c *Config) *bool { return &c.Trace })},
}

// ApplyEnv overrides c from TOOLSPEC_* variables found by lookup
// (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range bindings {
		v, ok := lookup(EnvPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(c, v); err != nil {
			return errmodel.Validation("env", fmt.Sprintf("%s%s: %v", EnvPrefix, b.name, err), nil)
		}
	}
	return nil
}

// Validate checks settings that would otherwise fail deep in the pipeline.
func (c Config) Validate() error {
	switch c.Source {
	case SourceGo:
	case SourceManifest:
		if c.Manifest == "" {
			return errmodel.Validation("manifest_required", "source manifest needs a catalogue path", nil)
		}
	default:
		return errmodel.Validation("source", fmt.Sprintf("unknown source %q (want go or manifest)", c.Source), nil)
	}
	if c.MaxRetries < 1 {
		return errmodel.Validation("max_retries", "max_retries must be at least 1", map[string]any{"max_retries": c.MaxRetries})
	}
	if c.BackoffUnit <= 0 {
		return errmodel.Validation("backoff_unit", "backoff_unit must be positive", nil)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return errmodel.Validation("log_level", err.Error(), nil)
	}
	return nil
}

// Convert maps c onto the orchestrator config for module.
func (c Config) Convert(module string) convert.Config {
	return convert.Config{
		Module:         module,
		IncludePrivate: c.IncludePrivate,
		Filter:         c.Filter,
		Provider:       c.Provider,
		Model:          c.Model,
		APIKey:         c.APIKey,
		MaxRetries:     c.MaxRetries,
		BackoffUnit:    c.BackoffUnit,
	}
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "****"
	}
	return c
}
