package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Session     SessionConfig     `toml:"session"`
	Lock        LockConfig        `toml:"lock"`
	Database    DatabaseConfig    `toml:"database"`
	User        UserConfig        `toml:"user"`
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Recommend   RecommendConfig   `toml:"recommend"`
}

// SessionConfig controls the real-time session channel and its reconnection policy.
type SessionConfig struct {
	URL           string        `toml:"url"`
	RetryInterval time.Duration `toml:"retry_interval"`
	MaxAttempts   int           `toml:"max_attempts"`
}

// LockConfig controls the refresh lease.
type LockConfig struct {
	TTL time.Duration `toml:"ttl"`
}

// DatabaseConfig contains database connection settings.
//
// The database file doubles as the key-value store shared by every jam process of one user.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// UserConfig is the local participant's identity. An empty ID is generated on first use.
type UserConfig struct {
	ID     string `toml:"id"`
	Name   string `toml:"name"`
	Avatar string `toml:"avatar"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// Map returns the credentials keyed the way service constructors expect them.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// ServerConfig contains relay server settings.
type ServerConfig struct {
	Host   string   `toml:"host"`
	Port   int      `toml:"port"`
	Tokens []string `toml:"tokens"`
}

// Addr returns host:port for [http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RecommendConfig paces the recommendation feed.
type RecommendConfig struct {
	RateLimit float64       `toml:"rate_limit"`
	Interval  time.Duration `toml:"interval"`
}

// Validate reports settings that would make the session layer misbehave.
func (c *Config) Validate() error {
	if c.Session.URL == "" {
		return fmt.Errorf("%w: session.url is empty", ErrInvalidConfig)
	}
	if c.Session.RetryInterval <= 0 {
		return fmt.Errorf("%w: session.retry_interval must be positive", ErrInvalidConfig)
	}
	if c.Session.MaxAttempts < 0 {
		return fmt.Errorf("%w: session.max_attempts must not be negative", ErrInvalidConfig)
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("%w: lock.ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
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
