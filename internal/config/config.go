package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port" validate:"omitempty,numeric"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" validate:"omitempty,url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Backend struct {
		BaseURL string `yaml:"baseURL" validate:"omitempty,url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"backend"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Session struct {
		TickInterval  string `yaml:"tickInterval"`
		Retention     string `yaml:"retention"`
		SweepInterval string `yaml:"sweepInterval"`
	} `yaml:"session"`
	Drafts struct {
		Backend string `yaml:"backend" validate:"omitempty,oneof=memory redis sqlite"`
		TTL     string `yaml:"ttl"`
	} `yaml:"drafts"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	} `yaml:"log"`
}

// Load reads YAML config from path and validates it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field formats and the combinations the server relies on.
func (c Config) Validate() error {
	var errs []error
	if err := validator.New().Struct(c); err != nil {
		errs = append(errs, fmt.Errorf("invalid config: %w", err))
	}

	durations := map[string]string{
		"redis.ttl":             c.Redis.TTL,
		"backend.timeout":       c.Backend.Timeout,
		"quiz.ttl":              c.Quiz.TTL,
		"session.tickInterval":  c.Session.TickInterval,
		"session.retention":     c.Session.Retention,
		"session.sweepInterval": c.Session.SweepInterval,
		"drafts.ttl":            c.Drafts.TTL,
	}
	for key, raw := range durations {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if c.Drafts.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("drafts.backend redis requires redis.addr"))
	}
	return errors.Join(errs...)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
