// Package config provides configuration loading and management for repopulse.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete repopulse configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Stream        StreamConfig        `yaml:"stream"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Chat          ChatConfig          `yaml:"chat"`
	Retry         RetryConfig         `yaml:"retry"`
}

// ServerConfig configures the dashboard backend connection
type ServerConfig struct {
	// BaseURL is the backend root (e.g., "http://localhost:8080")
	BaseURL string `yaml:"base_url"`
	// Timeout bounds request/response calls; streams are exempt
	Timeout time.Duration `yaml:"timeout"`
}

// StreamConfig configures the push channel
type StreamConfig struct {
	// HeartbeatTolerance is how long the feed may stay silent before the
	// connection is considered suspect (informational, surfaced in status)
	HeartbeatTolerance time.Duration `yaml:"heartbeat_tolerance"`
}

// NotificationsConfig bounds the recent-activity list
type NotificationsConfig struct {
	// Max is the notification list cap; oldest entries are pruned past it
	Max int `yaml:"max"`
}

// ChatConfig caps the repo context projection sent with chat requests
type ChatConfig struct {
	MaxCommits      int `yaml:"max_commits"`
	MaxBranches     int `yaml:"max_branches"`
	MaxPullRequests int `yaml:"max_pull_requests"`
	MaxIssues       int `yaml:"max_issues"`
	MaxContributors int `yaml:"max_contributors"`
}

// RetryConfig tunes retry behavior for snapshot fetches
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Stream: StreamConfig{
			HeartbeatTolerance: 90 * time.Second,
		},
		Notifications: NotificationsConfig{
			Max: 50,
		},
		Chat: ChatConfig{
			MaxCommits:      20,
			MaxBranches:     10,
			MaxPullRequests: 10,
			MaxIssues:       10,
			MaxContributors: 10,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			BackoffBase:       time.Second,
			BackoffMultiplier: 2.0,
			MaxBackoff:        15 * time.Second,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Notifications.Max <= 0 {
		return fmt.Errorf("notifications.max must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.BaseURL != "" {
		c.Server.BaseURL = other.Server.BaseURL
	}
	if other.Server.Timeout != 0 {
		c.Server.Timeout = other.Server.Timeout
	}

	// Stream
	if other.Stream.HeartbeatTolerance != 0 {
		c.Stream.HeartbeatTolerance = other.Stream.HeartbeatTolerance
	}

	// Notifications
	if other.Notifications.Max != 0 {
		c.Notifications.Max = other.Notifications.Max
	}

	// Chat
	if other.Chat.MaxCommits != 0 {
		c.Chat.MaxCommits = other.Chat.MaxCommits
	}
	if other.Chat.MaxBranches != 0 {
		c.Chat.MaxBranches = other.Chat.MaxBranches
	}
	if other.Chat.MaxPullRequests != 0 {
		c.Chat.MaxPullRequests = other.Chat.MaxPullRequests
	}
	if other.Chat.MaxIssues != 0 {
		c.Chat.MaxIssues = other.Chat.MaxIssues
	}
	if other.Chat.MaxContributors != 0 {
		c.Chat.MaxContributors = other.Chat.MaxContributors
	}

	// Retry
	if other.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = other.Retry.MaxAttempts
	}
	if other.Retry.BackoffBase != 0 {
		c.Retry.BackoffBase = other.Retry.BackoffBase
	}
	if other.Retry.BackoffMultiplier != 0 {
		c.Retry.BackoffMultiplier = other.Retry.BackoffMultiplier
	}
	if other.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = other.Retry.MaxBackoff
	}
}
