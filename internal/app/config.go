package app

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"spotter/internal/geo"
)

// Default configuration constants
const (
	DefaultServeAddr     = "127.0.0.1:3000"
	DefaultFeedAddr      = "127.0.0.1:30002"
	DefaultFeedFormat    = "avr"
	DefaultMaxAge        = 120 * time.Second
	DefaultMaxRange      = 500.0 // km
	DefaultStatsInterval = 30 * time.Second
	DefaultDialTimeout   = 10 * time.Second
)

// Config holds application configuration
type Config struct {
	Latitude  float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `yaml:"longitude" validate:"gte=-180,lte=180"`

	ServeAddr  string `yaml:"serve_addr" validate:"required,hostname_port|tcp_addr"`
	FeedAddr   string `yaml:"feed_addr" validate:"required,hostname_port|tcp_addr"`
	FeedFormat string `yaml:"feed_format" validate:"oneof=avr beast"`

	MaxAge        time.Duration `yaml:"max_age" validate:"gt=0"`
	MaxRange      float64       `yaml:"max_range" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gte=0"`
	StatsInterval time.Duration `yaml:"stats_interval" validate:"gte=0"`
	DialTimeout   time.Duration `yaml:"dial_timeout" validate:"gte=0"`

	LogDir           string `yaml:"log_dir"`
	LogRotateUTC     bool   `yaml:"log_rotate_utc"`
	LogRetentionDays int    `yaml:"log_retention_days" validate:"gte=0"`
	Verbose          bool   `yaml:"verbose"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		ServeAddr:     DefaultServeAddr,
		FeedAddr:      DefaultFeedAddr,
		FeedFormat:    DefaultFeedFormat,
		MaxAge:        DefaultMaxAge,
		MaxRange:      DefaultMaxRange,
		StatsInterval: DefaultStatsInterval,
		DialTimeout:   DefaultDialTimeout,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks every field against its constraints
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Observer returns the fixed observation point
func (c Config) Observer() geo.Point {
	return geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}
}
