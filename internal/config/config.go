// Package config loads the CLI's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the anyworld CLI.
type Config struct {
	API     APIConfig
	Poll    PollConfig
	History HistoryConfig
}

// APIConfig carries credentials and endpoint overrides for the remote API.
type APIConfig struct {
	Key                 string
	BaseURL             string // empty means the production API
	PollingURL          string
	GeneratedPollingURL string
	Mode                string // "production" (default) or "staging"
	Timeout             time.Duration
}

// PollConfig carries the default completion-poll timing.
type PollConfig struct {
	Warmup   time.Duration
	Interval time.Duration
	Deadline time.Duration // 0 = wait forever
}

// HistoryConfig locates the local submission-history database.
type HistoryConfig struct {
	Path string
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	API     rawAPIConfig     `yaml:"api"`
	Poll    rawPollConfig    `yaml:"poll"`
	History rawHistoryConfig `yaml:"history"`
}

type rawAPIConfig struct {
	Key                 string `yaml:"key"`
	BaseURL             string `yaml:"base_url"`
	PollingURL          string `yaml:"polling_url"`
	GeneratedPollingURL string `yaml:"generated_polling_url"`
	Mode                string `yaml:"mode"`
	Timeout             string `yaml:"timeout"`
}

type rawPollConfig struct {
	Warmup   string `yaml:"warmup"`
	Interval string `yaml:"interval"`
	Deadline string `yaml:"deadline"`
}

type rawHistoryConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no config file exists. The API
// key is expected to come from the environment in that case.
func Default() *Config {
	return &Config{
		Poll: PollConfig{
			Warmup:   10 * time.Second,
			Interval: 5 * time.Second,
		},
		History: HistoryConfig{Path: "anyworld.db"},
	}
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config. Environment variables in the file are expanded, so the API
// key can be written as ${AW_API_KEY}.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	cfg.API.Key = raw.API.Key
	cfg.API.BaseURL = raw.API.BaseURL
	cfg.API.PollingURL = raw.API.PollingURL
	cfg.API.GeneratedPollingURL = raw.API.GeneratedPollingURL
	cfg.API.Mode = raw.API.Mode
	if raw.History.Path != "" {
		cfg.History.Path = raw.History.Path
	}

	durations := []struct {
		name  string
		value string
		out   *time.Duration
	}{
		{"api.timeout", raw.API.Timeout, &cfg.API.Timeout},
		{"poll.warmup", raw.Poll.Warmup, &cfg.Poll.Warmup},
		{"poll.interval", raw.Poll.Interval, &cfg.Poll.Interval},
		{"poll.deadline", raw.Poll.Deadline, &cfg.Poll.Deadline},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", d.name, d.value, err)
		}
		*d.out = parsed
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.API.Mode {
	case "", "production", "staging":
	default:
		return fmt.Errorf("api.mode must be \"production\" or \"staging\", got %q", cfg.API.Mode)
	}
	if cfg.Poll.Warmup < 0 {
		return fmt.Errorf("poll.warmup must be non-negative, got %v", cfg.Poll.Warmup)
	}
	if cfg.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %v", cfg.Poll.Interval)
	}
	if cfg.Poll.Deadline < 0 {
		return fmt.Errorf("poll.deadline must be non-negative, got %v", cfg.Poll.Deadline)
	}
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be non-negative, got %v", cfg.API.Timeout)
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path must not be empty")
	}
	return nil
}

// Staging reports whether the config selects the staging pipeline.
func (c *Config) Staging() bool {
	return c.API.Mode == "staging"
}
