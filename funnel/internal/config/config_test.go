package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8095 {
		t.Errorf("Server.Port = %d, want 8095", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.CAPI.Currency != "BRL" {
		t.Errorf("CAPI.Currency = %q, want BRL", cfg.CAPI.Currency)
	}
	if cfg.CAPI.Delivery != "outbox" {
		t.Errorf("CAPI.Delivery = %q, want outbox", cfg.CAPI.Delivery)
	}
	if cfg.Outbox.MaxAttempts != 5 {
		t.Errorf("Outbox.MaxAttempts = %d, want 5", cfg.Outbox.MaxAttempts)
	}
	if cfg.Outbox.InitialInterval != 500*time.Millisecond {
		t.Errorf("Outbox.InitialInterval = %v, want 500ms", cfg.Outbox.InitialInterval)
	}
	if cfg.Sessions.LockTTL != 30*time.Second {
		t.Errorf("Sessions.LockTTL = %v, want 30s", cfg.Sessions.LockTTL)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.Requests != 60 {
		t.Errorf("RateLimit = %+v, want enabled with 60 requests", cfg.RateLimit)
	}
	if cfg.Redis.Enabled || cfg.NATS.Enabled {
		t.Error("Redis and NATS should be disabled by default")
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FUNNEL_CAPI_DELIVERY", "sync")
	t.Setenv("FUNNEL_SERVER_PORT", "9000")
	t.Setenv("FUNNEL_OUTBOX_MAX_INTERVAL", "1m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CAPI.Delivery != "sync" {
		t.Errorf("CAPI.Delivery = %q, want sync", cfg.CAPI.Delivery)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Outbox.MaxInterval != time.Minute {
		t.Errorf("Outbox.MaxInterval = %v, want 1m", cfg.Outbox.MaxInterval)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "funnel.yaml")
	content := []byte(`
database:
  driver: postgres
capi:
  currency: USD
  test_event_code: TEST123
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.CAPI.Currency != "USD" || cfg.CAPI.TestEventCode != "TEST123" {
		t.Errorf("file values not applied: %+v %+v", cfg.Database, cfg.CAPI)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() with non-existent file path should return error")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(path, []byte("invalid: yaml: : :"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() with invalid YAML should return error")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Database:  DatabaseConfig{Driver: "memory"},
			CAPI:      CAPIConfig{Delivery: "outbox", Currency: "BRL"},
			RateLimit: RateLimitConfig{Enabled: true, Requests: 10, Window: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad driver", func(c *Config) { c.Database.Driver = "sqlite" }, true},
		{"bad delivery", func(c *Config) { c.CAPI.Delivery = "kafka" }, true},
		{"bad currency", func(c *Config) { c.CAPI.Currency = "REAL" }, true},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, true},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }, true},
		{"zero window but disabled", func(c *Config) { c.RateLimit.Enabled = false; c.RateLimit.Window = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
