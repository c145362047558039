// Package config loads service configuration in three layers: built-in
// defaults, an optional YAML file, then PRESENCE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"presence/pkg/platform/validation"
)

const (
	// ConfigPathEnvVar names an explicit YAML file.
	ConfigPathEnvVar = "CONFIG_PATH"
	envPrefix        = "PRESENCE_"
)

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/presence/config.yaml",
}

type Config struct {
	Server       Server       `koanf:"server"`
	Log          Log          `koanf:"log"`
	Database     Database     `koanf:"database"`
	Redis        Redis        `koanf:"redis"`
	Kafka        Kafka        `koanf:"kafka"`
	Tracing      Tracing      `koanf:"tracing"`
	Stats        Stats        `koanf:"stats"`
	Revalidation Revalidation `koanf:"revalidation"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `koanf:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	RequestTimeout    time.Duration `koanf:"request_timeout" validate:"gte=0"`
	AdminToken        string        `koanf:"admin_token"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	// ClockRateLimit caps clock-in/clock-out requests per client IP per minute. Zero disables.
	ClockRateLimit int `koanf:"clock_rate_limit" validate:"gte=0"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// Database is optional: an empty URL selects the in-memory stores.
type Database struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
	Migrate         bool          `koanf:"migrate"`
}

// Redis is optional: an empty URL disables the stats cache.
type Redis struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size" validate:"gte=1"`
	MinIdleConns int           `koanf:"min_idle_conns" validate:"gte=0"`
	DialTimeout  time.Duration `koanf:"dial_timeout" validate:"gt=0"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
	StatsTTL     time.Duration `koanf:"stats_ttl" validate:"gte=0"`
}

// Kafka is optional: no brokers disables the outbox relay.
type Kafka struct {
	Brokers       []string      `koanf:"brokers"`
	Topic         string        `koanf:"topic" validate:"required"`
	RelayInterval time.Duration `koanf:"relay_interval" validate:"gt=0"`
	BatchSize     int           `koanf:"batch_size" validate:"gte=1,lte=1000"`
}

// Tracing is optional: an empty endpoint leaves the no-op tracer in place.
type Tracing struct {
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	ServiceName  string  `koanf:"service_name" validate:"required"`
	SampleRatio  float64 `koanf:"sample_ratio" validate:"gte=0,lte=1"`
}

type Stats struct {
	// DefaultWorkingDays is used when no period is supplied.
	DefaultWorkingDays int `koanf:"default_working_days" validate:"gte=1"`
	// Location names the IANA zone whose calendar dates count as working days.
	Location string `koanf:"location" validate:"required"`
}

type Revalidation struct {
	Concurrency int `koanf:"concurrency" validate:"gte=1,lte=64"`
	MaxBatch    int `koanf:"max_batch" validate:"gte=1"`
	// InvalidateLifecycle also moves sessions that fail a re-check to the
	// terminal invalid state. Off: only the audit status changes.
	InvalidateLifecycle bool `koanf:"invalidate_lifecycle"`
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RequestTimeout:    15 * time.Second,
			CORSOrigins:       []string{"*"},
			ClockRateLimit:    30,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Database: Database{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			StatsTTL:     time.Minute,
		},
		Kafka: Kafka{
			Topic:         "presence.audit",
			RelayInterval: 2 * time.Second,
			BatchSize:     100,
		},
		Tracing: Tracing{
			ServiceName: "presence",
			SampleRatio: 1,
		},
		Stats: Stats{
			DefaultWorkingDays: 22,
			Location:           "UTC",
		},
		Revalidation: Revalidation{
			Concurrency: 8,
			MaxBatch:    500,
		},
	}
}

// Load builds the configuration. Precedence: env > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// PRESENCE_SERVER__ADMIN_TOKEN -> server.admin_token
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.splitLists()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// splitLists expands comma-separated values that arrived through env vars.
func (c *Config) splitLists() {
	c.Server.CORSOrigins = splitCSV(c.Server.CORSOrigins)
	c.Kafka.Brokers = splitCSV(c.Kafka.Brokers)
}

func splitCSV(in []string) []string {
	var out []string
	for _, v := range in {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Stats.Location); err != nil {
		return fmt.Errorf("stats.location: %w", err)
	}
	return nil
}

// StatsLocation resolves the configured zone; Validate guarantees it loads.
func (c *Config) StatsLocation() *time.Location {
	loc, err := time.LoadLocation(c.Stats.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
