package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 50, cfg.Notifications.Max)
	assert.Equal(t, 20, cfg.Chat.MaxCommits)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)

	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Server.BaseURL = "" },
			wantErr: "server.base_url",
		},
		{
			name:    "non-positive timeout",
			mutate:  func(c *Config) { c.Server.Timeout = 0 },
			wantErr: "server.timeout",
		},
		{
			name:    "non-positive notification cap",
			mutate:  func(c *Config) { c.Notifications.Max = -1 },
			wantErr: "notifications.max",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = 0 },
			wantErr: "retry.max_attempts",
		},
		{
			name:    "shrinking backoff",
			mutate:  func(c *Config) { c.Retry.BackoffMultiplier = 0.5 },
			wantErr: "retry.backoff_multiplier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repopulse.yaml")

	content := `server:
  base_url: "https://dash.example.com"
notifications:
  max: 10
chat:
  max_commits: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	// Explicit values override, untouched fields keep their defaults.
	assert.Equal(t, "https://dash.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 10, cfg.Notifications.Max)
	assert.Equal(t, 5, cfg.Chat.MaxCommits)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.BaseURL = "https://dash.internal:9443"
	cfg.Notifications.Max = 25
	cfg.Retry.MaxBackoff = time.Minute

	path := filepath.Join(t.TempDir(), "nested", "repopulse.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Merge(&Config{
		Server:        ServerConfig{BaseURL: "https://override.example.com"},
		Notifications: NotificationsConfig{Max: 7},
	})

	assert.Equal(t, "https://override.example.com", base.Server.BaseURL)
	assert.Equal(t, 7, base.Notifications.Max)

	// Zero values in the overlay leave the base untouched.
	assert.Equal(t, 30*time.Second, base.Server.Timeout)
	assert.Equal(t, 20, base.Chat.MaxCommits)

	base.Merge(nil)
	assert.Equal(t, "https://override.example.com", base.Server.BaseURL)
}
