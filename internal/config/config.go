// Package config loads the service configuration from YAML with ${ENV}
// placeholder expansion.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		MinAdvanceMinutes     int `yaml:"min_advance_minutes"`
		MaxAdvanceDays        int `yaml:"max_advance_days"`
		SessionTimeoutMinutes int `yaml:"session_timeout_minutes"`
	} `yaml:"booking"`

	Notifications struct {
		Enabled        bool    `yaml:"enabled"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		Burst          int     `yaml:"burst"`
		MaxRetries     int     `yaml:"max_retries"`
		RetryDelaySecs []int   `yaml:"retry_delay_seconds"`
	} `yaml:"notifications"`

	StudiosConfigPath string `yaml:"studios_config_path"`
}

// Load reads the config file, expanding ${ENV_VAR} placeholders.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/agenda.db"
	}
	if cfg.StudiosConfigPath == "" {
		cfg.StudiosConfigPath = "configs/studios.yaml"
	}

	return &cfg, nil
}

// BookingMinAdvance returns the minimum lead time for a new booking.
func (c *Config) BookingMinAdvance() time.Duration {
	if c.Booking.MinAdvanceMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

// BookingMaxAdvance returns how far ahead bookings may be placed.
func (c *Config) BookingMaxAdvance() time.Duration {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 60 * 24 * time.Hour
	}
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

// SessionTimeout returns the booking flow session idle timeout.
func (c *Config) SessionTimeout() time.Duration {
	if c.Booking.SessionTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.SessionTimeoutMinutes) * time.Minute
}

// RetryDelays converts the configured retry delays, with defaults.
func (c *Config) RetryDelays() []time.Duration {
	if len(c.Notifications.RetryDelaySecs) == 0 {
		return []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}
	}
	delays := make([]time.Duration, 0, len(c.Notifications.RetryDelaySecs))
	for _, s := range c.Notifications.RetryDelaySecs {
		delays = append(delays, time.Duration(s)*time.Second)
	}
	return delays
}
