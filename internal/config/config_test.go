package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `debug: false
server:
  address: ":8070"
database:
  host: localhost
  user: reelcast
  password: secret
  name: reelcast
redis:
  addr: "localhost:6379"
worker:
  poll_interval: "15m"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Worker.PublishTimeout != 5*time.Minute {
		t.Errorf("Worker.PublishTimeout = %v, want 5m", cfg.Worker.PublishTimeout)
	}
	if cfg.Worker.PostSpacing != time.Minute {
		t.Errorf("Worker.PostSpacing = %v, want 1m", cfg.Worker.PostSpacing)
	}
	if cfg.Compositor.MaxOverlayRatio != 0.5 {
		t.Errorf("Compositor.MaxOverlayRatio = %v, want 0.5", cfg.Compositor.MaxOverlayRatio)
	}
	if cfg.Blob.InlineThresholdBytes != 1<<20 {
		t.Errorf("Blob.InlineThresholdBytes = %d, want %d", cfg.Blob.InlineThresholdBytes, 1<<20)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeoutSeconds*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %ds", cfg.Server.ReadTimeout, DefaultReadTimeoutSeconds)
	}
}

func TestLoadDebugFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"true from env", "true", true},
		{"1 from env", "1", true},
		{"yes from env", "yes", true},
		{"false from env", "false", false},
		{"0 from env", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_DEBUG", tt.envValue)

			cfg, err := Load(writeConfig(t, minimalConfig))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Debug != tt.expected {
				t.Errorf("Config.Debug = %v, want %v (APP_DEBUG=%q)", cfg.Debug, tt.expected, tt.envValue)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("REDIS_ADDR", "cache.internal:6380")
	t.Setenv("REELCAST_PORT", "9090")
	t.Setenv("IMGBB_API_KEY", "k-123")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "db.internal")
	}
	if cfg.Redis.Addr != "cache.internal:6380" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "cache.internal:6380")
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":9090")
	}
	if cfg.Staging.ImgbbKey != "k-123" {
		t.Errorf("Staging.ImgbbKey = %q, want %q", cfg.Staging.ImgbbKey, "k-123")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing database host",
			body:    strings.Replace(minimalConfig, "host: localhost", "host: \"\"", 1),
			wantErr: "database.host is required",
		},
		{
			name:    "missing redis addr",
			body:    strings.Replace(minimalConfig, "addr: \"localhost:6379\"", "addr: \"\"", 1),
			wantErr: "redis.addr is required",
		},
		{
			name: "instagram enabled without token",
			body: minimalConfig + "instagram:\n  enabled: true\n  account_id: \"123\"\n",
			wantErr: "instagram.access_token is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "reelcast", SSLMode: "disable"}
	want := "host=localhost port=5432 user=u password=p dbname=reelcast sslmode=disable"
	if got := db.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
