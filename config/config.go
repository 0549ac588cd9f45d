// Package config loads the orchestrator's YAML configuration: connection
// settings, run tunables, and the per-source pipeline definitions that feed
// pipeline.New and schedule.New. Secrets arrive through the environment,
// optionally seeded from a .env file; environment values always win over
// the file.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/adwire/conveyor"
	"github.com/adwire/conveyor/pipeline"
	"github.com/adwire/conveyor/schedule"
	"github.com/adwire/conveyor/storage"
)

// File is the root of the YAML configuration.
type File struct {
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   storage.Config  `yaml:"storage"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// RuntimeConfig holds the run tunables. Zero fields fall back to
// conveyor.DefaultConfig.
type RuntimeConfig struct {
	MaxRuntimeMinutes int `yaml:"max_runtime_minutes"`
	MaxRetry          int `yaml:"max_retry"`
	MaxParallelism    int `yaml:"max_parallelism"`
	PageSize          int `yaml:"page_size"`
	GuardTTLMinutes   int `yaml:"guard_ttl_minutes"`
}

// Config converts the YAML tunables into the engine's Config, filling
// zero fields from the defaults.
func (r RuntimeConfig) Config() conveyor.Config {
	cfg := conveyor.DefaultConfig()
	if r.MaxRuntimeMinutes > 0 {
		cfg.MaxRuntime = time.Duration(r.MaxRuntimeMinutes) * time.Minute
	}
	if r.MaxRetry > 0 {
		cfg.MaxRetry = r.MaxRetry
	}
	if r.MaxParallelism > 0 {
		cfg.MaxParallelism = r.MaxParallelism
	}
	if r.PageSize > 0 {
		cfg.PageSize = r.PageSize
	}
	if r.GuardTTLMinutes > 0 {
		cfg.GuardTTL = time.Duration(r.GuardTTLMinutes) * time.Minute
	}
	return cfg
}

// PostgresConfig holds the work-item store connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds the run-guard connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WarehouseConfig selects the analytics warehouse and its connection.
type WarehouseConfig struct {
	// Driver is "snowflake" or "pgx" (Redshift).
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SourceConfig defines one ad platform source: its pipeline steps, its
// schedule, per-source tunables, and the folders its cleanup may touch.
type SourceConfig struct {
	Name           string            `yaml:"name"`
	IntegrationID  string            `yaml:"integration_id"`
	Steps          []StepConfig      `yaml:"steps"`
	Schedule       ScheduleConfig    `yaml:"schedule"`
	Tunables       map[string]string `yaml:"tunables"`
	CleanupFolders []string          `yaml:"cleanup_folders"`
}

// StepConfig defines one pipeline step.
type StepConfig struct {
	Name     string `yaml:"name"`
	Order    int    `yaml:"order"`
	Category string `yaml:"category"`
	SubType  string `yaml:"sub_type"`
}

// ScheduleConfig defines the source's recurrence.
type ScheduleConfig struct {
	Interval   string `yaml:"interval"`
	Expression string `yaml:"expression"`
	TimeZone   string `yaml:"time_zone"`
	Cron       string `yaml:"cron"`
}

// Source finds a source definition by name.
func (f *File) Source(name string) (*SourceConfig, error) {
	for i := range f.Sources {
		if f.Sources[i].Name == name {
			return &f.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", conveyor.ErrSourceNotFound, name)
}

// Path builds the source's execution path for the given context type.
func (s *SourceConfig) Path(contextType string) (*pipeline.Path, error) {
	steps := make([]pipeline.Step, 0, len(s.Steps))
	for _, sc := range s.Steps {
		category := pipeline.CategorySource
		if sc.Category == string(pipeline.CategoryGeneric) {
			category = pipeline.CategoryGeneric
		}
		steps = append(steps, pipeline.Step{
			Name:     sc.Name,
			Order:    sc.Order,
			Category: category,
			SubType:  sc.SubType,
		})
	}
	return pipeline.New(s.Name, contextType, steps)
}

// Calendar builds the source's schedule calendar.
func (s *SourceConfig) Calendar() (*schedule.Calendar, error) {
	opts := make([]schedule.Option, 0, 3)
	if s.Schedule.Expression != "" {
		opts = append(opts, schedule.WithExpression(s.Schedule.Expression))
	}
	if s.Schedule.TimeZone != "" {
		opts = append(opts, schedule.WithTimeZone(s.Schedule.TimeZone))
	}
	if s.Schedule.Cron != "" {
		opts = append(opts, schedule.WithCron(s.Schedule.Cron))
	}
	return schedule.New(schedule.Interval(s.Schedule.Interval), opts...)
}

// ──────────────────────────────────────────────────
// Typed tunable lookups
// ──────────────────────────────────────────────────

// Int returns the named tunable as an int, or def when absent or
// malformed.
func (s *SourceConfig) Int(key string, def int) int {
	raw, ok := s.Tunables[key]
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// Bool returns the named tunable as a bool, or def when absent or
// malformed.
func (s *SourceConfig) Bool(key string, def bool) bool {
	raw, ok := s.Tunables[key]
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// Duration returns the named tunable as a time.Duration ("90s", "5m"), or
// def when absent or malformed.
func (s *SourceConfig) Duration(key string, def time.Duration) time.Duration {
	raw, ok := s.Tunables[key]
	if !ok {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return v
}

// String returns the named tunable, or def when absent.
func (s *SourceConfig) String(key, def string) string {
	if raw, ok := s.Tunables[key]; ok {
		return raw
	}
	return def
}
