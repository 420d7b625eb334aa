// Package config loads lazysync settings from YAML with environment
// overrides and turns them into component options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lazysync/internal/deferred"
	"github.com/roach88/lazysync/internal/entity"
	"github.com/roach88/lazysync/internal/registry"
	"github.com/roach88/lazysync/internal/serialize"
	"github.com/roach88/lazysync/internal/store"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "lazysync.yaml"

// Environment overrides.
const (
	EnvDatabase = "LAZYSYNC_DB"
	EnvDriver   = "LAZYSYNC_DRIVER"
	EnvLogLevel = "LAZYSYNC_LOG_LEVEL"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Resolve   ResolveConfig   `yaml:"resolve"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Errors    ErrorsConfig    `yaml:"errors"`
	Log       LogConfig       `yaml:"log"`
	Serialize SerializeConfig `yaml:"serialize"`
}

type DatabaseConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"`
}

type ResolveConfig struct {
	Policy        string `yaml:"policy"`
	MaxIterations int    `yaml:"max_iterations"`
}

type HeartbeatConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type ErrorsConfig struct {
	Deduplicate bool `yaml:"deduplicate"`
	Mirror      bool `yaml:"mirror"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SerializeConfig struct {
	MaxDepth        int  `yaml:"max_depth"`
	DetectRecursion bool `yaml:"detect_recursion"`
	FriendlyLinks   bool `yaml:"friendly_links"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Database:  DatabaseConfig{Path: "lazysync.db", Driver: store.DriverCGO},
		Resolve:   ResolveConfig{Policy: entity.ResolveLate.String(), MaxIterations: deferred.DefaultMaxIterations},
		Heartbeat: HeartbeatConfig{TTL: 30 * time.Second},
		Errors:    ErrorsConfig{Deduplicate: true, Mirror: true},
		Log:       LogConfig{Level: "info", Format: "text"},
		Serialize: SerializeConfig{MaxDepth: serialize.DefaultMaxDepth, DetectRecursion: true},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path reads DefaultFile if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.Decode(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges YAML data into c. Unknown keys are errors.
func (c *Config) Decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv applies environment overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup(EnvDriver); ok && v != "" {
		c.Database.Driver = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	switch c.Database.Driver {
	case store.DriverCGO, store.DriverPureGo:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: must be %q or %q", c.Database.Driver, store.DriverCGO, store.DriverPureGo))
	}
	if _, err := entity.ParsePolicy(c.Resolve.Policy); err != nil {
		errs = append(errs, fmt.Errorf("resolve.policy: %w", err))
	}
	if c.Resolve.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("resolve.max_iterations must not be negative"))
	}
	if c.Heartbeat.TTL < 0 {
		errs = append(errs, fmt.Errorf("heartbeat.ttl must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q: must be text or json", c.Log.Format))
	}
	if c.Serialize.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("serialize.max_depth must not be negative"))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// Policy returns the configured default resolution policy.
func (c *Config) Policy() entity.Policy {
	p, err := entity.ParsePolicy(c.Resolve.Policy)
	if err != nil {
		return entity.ResolveLate
	}
	return p
}

// NewLogger builds a logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *Config) StoreOptions() []store.Option {
	return []store.Option{store.WithDriver(c.Database.Driver)}
}

func (c *Config) RegistryOptions(logger *slog.Logger) []registry.Option {
	return []registry.Option{
		registry.WithLogger(logger),
		registry.WithDeduplication(c.Errors.Deduplicate),
		registry.WithMirror(c.Errors.Mirror),
	}
}

func (c *Config) QueueOptions(logger *slog.Logger) []deferred.QueueOption {
	return []deferred.QueueOption{
		deferred.WithMaxIterations(c.Resolve.MaxIterations),
		deferred.WithLogger(logger),
	}
}

// RuleSet returns the base serialization rules.
func (c *Config) RuleSet() *serialize.RuleSet {
	return serialize.NewRuleSet(
		serialize.WithMaxDepth(c.Serialize.MaxDepth),
		serialize.WithRecursionDetection(c.Serialize.DetectRecursion),
		serialize.WithFriendlyLinks(c.Serialize.FriendlyLinks),
	)
}
