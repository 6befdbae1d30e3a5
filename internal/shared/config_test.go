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

		if config.Database.Path != "./ttrack.db" {
			t.Errorf("expected database path ./ttrack.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 6789 {
			t.Errorf("expected server port 6789, got %d", config.Server.Port)
		}
		if config.Store.SpreadsheetTitle != "Time Tracker Data" {
			t.Errorf("expected spreadsheet title 'Time Tracker Data', got %s", config.Store.SpreadsheetTitle)
		}
		if config.Store.SheetName != "Tasks" {
			t.Errorf("expected sheet name Tasks, got %s", config.Store.SheetName)
		}
		if config.Sync.Interval.Duration != 10*time.Second {
			t.Errorf("expected sync interval 10s, got %v", config.Sync.Interval)
		}
		if config.Sync.MaxAttempts != 3 {
			t.Errorf("expected max attempts 3, got %d", config.Sync.MaxAttempts)
		}
		if config.Auth.ExpiryMargin.Duration != 5*time.Minute {
			t.Errorf("expected expiry margin 5m, got %v", config.Auth.ExpiryMargin)
		}
		if config.Auth.DefaultLifetime.Duration != time.Hour {
			t.Errorf("expected default lifetime 1h, got %v", config.Auth.DefaultLifetime)
		}
		if len(config.Google.Scopes) != 3 {
			t.Errorf("expected 3 scopes, got %d", len(config.Google.Scopes))
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
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[google]
client_id = "test_client_id"
client_secret = "test_secret"

[sync]
interval = "30s"
max_attempts = 5

[database]
path = "/custom/path.db"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Google.ClientID != "test_client_id" {
			t.Errorf("expected client_id test_client_id, got %s", config.Google.ClientID)
		}
		if config.Sync.Interval.Duration != 30*time.Second {
			t.Errorf("expected interval 30s, got %v", config.Sync.Interval)
		}
		if config.Sync.MaxAttempts != 5 {
			t.Errorf("expected max attempts 5, got %d", config.Sync.MaxAttempts)
		}
		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Store.SheetName != "Tasks" {
			t.Errorf("expected unset keys to keep defaults, got sheet name %q", config.Store.SheetName)
		}
	})

	t.Run("LoadConfig With Bad Duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[sync]\ninterval = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for unparseable duration")
		}
	})

	t.Run("LoadConfigOrDefault Missing File", func(t *testing.T) {
		config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.Store.SheetName != "Tasks" {
			t.Errorf("expected defaults, got %+v", config.Store)
		}
	})

	t.Run("SaveConfig Round Trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Google.ClientID = "saved-id"
		config.Sync.Interval = Duration{45 * time.Second}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("SaveConfig() error = %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if loaded.Google.ClientID != "saved-id" {
			t.Errorf("expected saved-id, got %s", loaded.Google.ClientID)
		}
		if loaded.Sync.Interval.Duration != 45*time.Second {
			t.Errorf("expected 45s, got %v", loaded.Sync.Interval)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			mutate  func(c *Config)
			wantErr bool
		}{
			{name: "defaults", mutate: func(c *Config) {}},
			{name: "missing client id", mutate: func(c *Config) { c.Google.ClientID = "" }, wantErr: true},
			{name: "zero interval", mutate: func(c *Config) { c.Sync.Interval = Duration{} }, wantErr: true},
			{name: "zero attempts", mutate: func(c *Config) { c.Sync.MaxAttempts = 0 }, wantErr: true},
			{name: "missing sheet", mutate: func(c *Config) { c.Store.SheetName = "" }, wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				err := config.Validate()
				if (err != nil) != tt.wantErr {
					t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
				if err != nil && !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
