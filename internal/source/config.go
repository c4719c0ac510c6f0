// Package source holds the run configuration and turns configured sources
// into pipeline jobs.
package source

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"pricetrack/internal/configutil"
	"pricetrack/internal/fetcher"
	"pricetrack/internal/history"
	"pricetrack/internal/locator"
	"pricetrack/internal/normalizer"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
)

const (
	HistoryCSV    = "csv"
	HistorySQLite = "sqlite"
)

type HTTPConfig struct {
	UserAgent         string  `json:"user_agent"`
	TimeoutSeconds    int     `json:"timeout_seconds" validate:"gte=0"`
	RequestsPerSecond float64 `json:"requests_per_second" validate:"gte=0"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
}

type RetryConfig struct {
	MaxAttempts       int `json:"max_attempts" validate:"gte=0"`
	InitialIntervalMs int `json:"initial_interval_ms" validate:"gte=0"`
	MaxIntervalMs     int `json:"max_interval_ms" validate:"gte=0"`
}

// HistoryConfig selects where a source keeps its history. The csv path
// defaults to <data_dir>/processed/historical_<name>.csv.
type HistoryConfig struct {
	Kind string `json:"kind" validate:"omitempty,oneof=csv sqlite"`
	Path string `json:"path"`
	history.SQLConfig
}

type Source struct {
	// Preset names a built-in source, every other field overrides it. A
	// discriminator with a kind or a schema with a key replaces the preset's
	// whole; other zero-valued fields (timeout_seconds: 0, false) keep the
	// preset's value.
	Preset         string                `json:"preset"`
	Name           string                `json:"name" validate:"required,sourcename"`
	URL            string                `json:"url" validate:"required,url"`
	Method         string                `json:"method" validate:"omitempty,oneof=GET POST"`
	Headers        map[string]string     `json:"headers"`
	Body           any                   `json:"body"`
	TimeoutSeconds int                   `json:"timeout_seconds" validate:"gte=0"`
	Discriminator  locator.Discriminator `json:"discriminator"`
	Schema         normalizer.Schema     `json:"schema"`
	History        HistoryConfig         `json:"history"`
	// SnapshotDir defaults to <data_dir>/raw.
	SnapshotDir string `json:"snapshot_dir"`
	NoSnapshot  bool   `json:"no_snapshot"`
}

type Config struct {
	DataDir     string      `json:"data_dir"`
	Timezone    string      `json:"timezone"`
	Parallelism int         `json:"parallelism" validate:"gte=0"`
	HTTP        HTTPConfig  `json:"http"`
	Retry       RetryConfig `json:"retry"`
	Sources     []Source    `json:"sources"`
}

var sourceNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("sourcename", func(fl validator.FieldLevel) bool {
		return sourceNameRegex.MatchString(fl.Field().String())
	})
	return v
}

// Load reads path (and its .local override) and resolves it.
func Load(path string) (Config, error) {
	config, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, err
	}
	return config.Resolve()
}

// Resolve fills defaults, expands presets and validates every source.
func (c Config) Resolve() (Config, error) {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Parallelism == 0 {
		c.Parallelism = 2
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return Config{}, fmt.Errorf("timezone: %w", err)
	}

	resolved := make([]Source, len(c.Sources))
	names := map[string]bool{}
	targets := map[string]string{}
	for i, s := range c.Sources {
		s, err := c.resolveSource(s)
		if err != nil {
			return Config{}, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if names[s.Name] {
			return Config{}, fmt.Errorf("sources[%d]: duplicate source name %q", i, s.Name)
		}
		names[s.Name] = true

		if s.History.Kind == HistoryCSV {
			target, err := filepath.Abs(s.History.Path)
			if err != nil {
				return Config{}, err
			}
			if other, ok := targets[target]; ok {
				return Config{}, fmt.Errorf("sources[%d]: %q shares its history file with %q", i, s.Name, other)
			}
			targets[target] = s.Name
		}
		resolved[i] = s
	}
	c.Sources = resolved
	return c, nil
}

func (c Config) resolveSource(s Source) (Source, error) {
	if s.Preset != "" {
		base, err := Preset(s.Preset)
		if err != nil {
			return Source{}, err
		}
		err = mergo.Merge(&base, s, mergo.WithOverride)
		if err != nil {
			return Source{}, err
		}
		if s.Discriminator.Kind != "" {
			base.Discriminator = s.Discriminator
		}
		if s.Schema.Key.Field != "" {
			base.Schema = s.Schema
		}
		s = base
	}

	if s.Method == "" {
		s.Method = "GET"
	}
	if s.History.Kind == "" {
		s.History.Kind = HistoryCSV
	}
	if s.History.Kind == HistoryCSV && s.History.Path == "" {
		s.History.Path = filepath.Join(c.DataDir, "processed", fmt.Sprintf("historical_%s.csv", s.Name))
	}
	if s.History.Kind == HistorySQLite && s.History.File == "" && s.History.Url == "" {
		s.History.File = filepath.Join(c.DataDir, "history.db")
	}
	if s.SnapshotDir == "" {
		s.SnapshotDir = filepath.Join(c.DataDir, "raw")
	}

	if err := validate.Struct(s); err != nil {
		return Source{}, err
	}
	if err := s.Discriminator.Validate(); err != nil {
		return Source{}, err
	}
	if err := s.Schema.Validate(); err != nil {
		return Source{}, err
	}
	if s.Discriminator.IsJSON() {
		for _, col := range s.Schema.Columns {
			if col.Path == "" && col.Const == "" {
				return Source{}, fmt.Errorf("field %q needs a path or a const for a json source", col.Field)
			}
		}
	}
	return s, nil
}

// Source returns the resolved source with the given name.
func (c Config) Source(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

func (c Config) FetcherOptions() fetcher.Options {
	ua := c.HTTP.UserAgent
	if ua == "" {
		ua = fetcher.DefaultUserAgent
	}
	return fetcher.Options{
		UserAgent:         ua,
		Timeout:           time.Duration(c.HTTP.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.HTTP.RequestsPerSecond,
		CloudflareBypass:  c.HTTP.CloudflareBypass,
	}
}

func (c Config) RetryPolicy() fetcher.RetryPolicy {
	policy := fetcher.DefaultRetryPolicy
	if c.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.InitialIntervalMs > 0 {
		policy.InitialInterval = time.Duration(c.Retry.InitialIntervalMs) * time.Millisecond
	}
	if c.Retry.MaxIntervalMs > 0 {
		policy.MaxInterval = time.Duration(c.Retry.MaxIntervalMs) * time.Millisecond
	}
	return policy
}
