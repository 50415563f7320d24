package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./jam.db" {
			t.Errorf("expected database path ./jam.db, got %s", config.Database.Path)
		}

		if config.Session.RetryInterval != 3*time.Second {
			t.Errorf("expected retry interval 3s, got %v", config.Session.RetryInterval)
		}

		if config.Session.MaxAttempts != 5 {
			t.Errorf("expected 5 reconnect attempts, got %d", config.Session.MaxAttempts)
		}

		if config.Lock.TTL != 10*time.Second {
			t.Errorf("expected lock ttl 10s, got %v", config.Lock.TTL)
		}

		if config.Server.Addr() != "127.0.0.1:3000" {
			t.Errorf("expected server addr 127.0.0.1:3000, got %s", config.Server.Addr())
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Session.URL != defaultConfig.Session.URL {
			t.Errorf("created config session url doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[session]
url = "wss://jam.example.com/ws"
retry_interval = "500ms"
max_attempts = 2

[lock]
ttl = "15s"

[user]
id = "u-1"
name = "Ada"

[server]
tokens = ["secret"]
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Session.URL != "wss://jam.example.com/ws" {
			t.Errorf("expected custom session url, got %s", config.Session.URL)
		}
		if config.Session.RetryInterval != 500*time.Millisecond {
			t.Errorf("expected retry interval 500ms, got %v", config.Session.RetryInterval)
		}
		if config.Lock.TTL != 15*time.Second {
			t.Errorf("expected lock ttl 15s, got %v", config.Lock.TTL)
		}
		if config.User.Name != "Ada" {
			t.Errorf("expected user name Ada, got %s", config.User.Name)
		}
		if len(config.Server.Tokens) != 1 || config.Server.Tokens[0] != "secret" {
			t.Errorf("expected one server token, got %v", config.Server.Tokens)
		}
		if config.Database.Path != "./jam.db" {
			t.Errorf("expected unset keys to keep defaults, got database path %s", config.Database.Path)
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[lock]\nttl = \"0s\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SpotifyConfig Map", func(t *testing.T) {
		creds := SpotifyConfig{ClientID: "id", ClientSecret: "secret"}.Map()
		if creds["client_id"] != "id" || creds["client_secret"] != "secret" {
			t.Errorf("unexpected credentials map %v", creds)
		}
		if v, ok := creds["redirect_uri"]; !ok || v != "" {
			t.Errorf("expected empty redirect_uri key, got %q (present=%v)", v, ok)
		}
	})
}
