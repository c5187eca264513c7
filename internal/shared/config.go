package shared

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Migration   MigrationConfig   `toml:"migration"`
	HTTP        HTTPConfig        `toml:"http"`
	Database    DatabaseConfig    `toml:"database"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Flickr FlickrConfig `toml:"flickr"`
	Google GoogleConfig `toml:"google"`
}

// FlickrConfig contains Flickr API credentials and the account to migrate.
type FlickrConfig struct {
	APIKey     string `toml:"api_key"`
	APISecret  string `toml:"api_secret"`
	Username   string `toml:"username"`
	SecretFile string `toml:"secret_file"`
}

// GoogleConfig points at the OAuth client secret and the cached token.
type GoogleConfig struct {
	ClientSecretFile string `toml:"client_secret_file"`
	TokenFile        string `toml:"token_file"`
	RedirectURI      string `toml:"redirect_uri"`
}

// MigrationConfig tunes the page pipeline.
type MigrationConfig struct {
	StageDir         string        `toml:"stage_dir"`
	PreferredSize    string        `toml:"preferred_size"`
	PageRetries      int           `toml:"page_retries"`
	RetryDelay       time.Duration `toml:"retry_delay"`
	DownloadAttempts int           `toml:"download_attempts"`
	RefreshAfter     time.Duration `toml:"refresh_after"`
	RateLimit        float64       `toml:"rate_limit"`
}

// HTTPConfig bounds every outgoing request.
type HTTPConfig struct {
	Timeout time.Duration `toml:"timeout"`
}

// DatabaseConfig contains settings for the run journal database.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.loadFlickrSecret(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the migration pipeline cannot run with.
func (c *Config) Validate() error {
	m := c.Migration
	switch {
	case m.StageDir == "":
		return fmt.Errorf("%w: migration.stage_dir is empty", ErrInvalidConfig)
	case m.PageRetries <= 0:
		return fmt.Errorf("%w: migration.page_retries must be positive", ErrInvalidConfig)
	case m.DownloadAttempts <= 0:
		return fmt.Errorf("%w: migration.download_attempts must be positive", ErrInvalidConfig)
	case m.RetryDelay < 0:
		return fmt.Errorf("%w: migration.retry_delay is negative", ErrInvalidConfig)
	case m.RefreshAfter <= 0:
		return fmt.Errorf("%w: migration.refresh_after must be positive", ErrInvalidConfig)
	case m.RateLimit <= 0:
		return fmt.Errorf("%w: migration.rate_limit must be positive", ErrInvalidConfig)
	case c.HTTP.Timeout <= 0:
		return fmt.Errorf("%w: http.timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// loadFlickrSecret overlays api_key/api_secret from the optional JSON secret file.
func (c *Config) loadFlickrSecret() error {
	path := c.Credentials.Flickr.SecretFile
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read flickr secret file: %v", ErrMissingCredentials, err)
	}

	var secret struct {
		APIKey    string `json:"api_key"`
		APISecret string `json:"api_secret"`
	}
	if err := json.Unmarshal(data, &secret); err != nil {
		return fmt.Errorf("%w: failed to parse flickr secret file: %v", ErrInvalidCredentials, err)
	}

	if secret.APIKey != "" {
		c.Credentials.Flickr.APIKey = secret.APIKey
	}
	if secret.APISecret != "" {
		c.Credentials.Flickr.APISecret = secret.APISecret
	}
	return nil
}
