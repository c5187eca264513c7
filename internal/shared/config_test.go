package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Migration.StageDir != "./tmp" {
			t.Errorf("expected stage dir ./tmp, got %s", config.Migration.StageDir)
		}
		if config.Migration.PageRetries != 5 {
			t.Errorf("expected 5 page retries, got %d", config.Migration.PageRetries)
		}
		if config.Migration.RetryDelay != time.Minute {
			t.Errorf("expected retry delay 1m, got %v", config.Migration.RetryDelay)
		}
		if config.Migration.RefreshAfter != 50*time.Minute {
			t.Errorf("expected refresh after 50m, got %v", config.Migration.RefreshAfter)
		}
		if config.Migration.PreferredSize != "X-Large 4K" {
			t.Errorf("expected preferred size X-Large 4K, got %s", config.Migration.PreferredSize)
		}
		if config.HTTP.Timeout != 2*time.Minute {
			t.Errorf("expected http timeout 2m, got %v", config.HTTP.Timeout)
		}
		if config.Database.Path != "./pxm.db" {
			t.Errorf("expected database path ./pxm.db, got %s", config.Database.Path)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Migration.StageDir != DefaultConfig().Migration.StageDir {
			t.Errorf("created config stage dir doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")
		secretPath := filepath.Join(tmpDir, "flickr_secret.json")

		if err := os.WriteFile(secretPath, []byte(`{"api_key":"file_key","api_secret":"file_secret"}`), 0600); err != nil {
			t.Fatalf("failed to write secret file: %v", err)
		}

		testConfig := `[credentials.flickr]
api_key = "inline_key"
username = "micronar"
secret_file = "` + filepath.ToSlash(secretPath) + `"

[migration]
stage_dir = "/var/tmp/pxm"
retry_delay = "5s"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Migration.StageDir != "/var/tmp/pxm" {
			t.Errorf("expected stage dir /var/tmp/pxm, got %s", config.Migration.StageDir)
		}
		if config.Migration.RetryDelay != 5*time.Second {
			t.Errorf("expected retry delay 5s, got %v", config.Migration.RetryDelay)
		}
		if config.Migration.PageRetries != 5 {
			t.Errorf("missing keys should keep defaults, got page_retries=%d", config.Migration.PageRetries)
		}
		if config.Credentials.Flickr.APIKey != "file_key" {
			t.Errorf("secret file should override api_key, got %s", config.Credentials.Flickr.APIKey)
		}
		if config.Credentials.Flickr.APISecret != "file_secret" {
			t.Errorf("expected api_secret from file, got %s", config.Credentials.Flickr.APISecret)
		}
		if config.Credentials.Flickr.Username != "micronar" {
			t.Errorf("expected username micronar, got %s", config.Credentials.Flickr.Username)
		}
	})

	t.Run("LoadConfig with missing secret file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := "[credentials.flickr]\nsecret_file = \"/nonexistent/secret.json\"\n"
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tt := []struct {
			name   string
			mutate func(c *Config)
		}{
			{"empty stage dir", func(c *Config) { c.Migration.StageDir = "" }},
			{"zero retries", func(c *Config) { c.Migration.PageRetries = 0 }},
			{"zero download attempts", func(c *Config) { c.Migration.DownloadAttempts = 0 }},
			{"negative delay", func(c *Config) { c.Migration.RetryDelay = -time.Second }},
			{"zero refresh threshold", func(c *Config) { c.Migration.RefreshAfter = 0 }},
			{"zero rate limit", func(c *Config) { c.Migration.RateLimit = 0 }},
			{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				config := DefaultConfig()
				tc.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
