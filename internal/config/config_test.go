package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.APIPort != 8080 || cfg.Server.MetricsPort != 9090 {
		t.Errorf("ports = %d/%d, want 8080/9090", cfg.Server.APIPort, cfg.Server.MetricsPort)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.KeyPrefix != "sessiontracker" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if got := cfg.Sessions.Budget(); got != 15*time.Hour {
		t.Errorf("Budget() = %v, want 15h", got)
	}
	if cfg.Users.CacheSize != 1024 {
		t.Errorf("users.cache_size = %d", cfg.Users.CacheSize)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  api_port: 8181
storage:
  type: bolt
  path: `+filepath.Join(dir, "data", "sessions.db")+`
sessions:
  daily_budget: 8h
  require_end_time: true
api:
  allowed_origins: ["https://app.example.com"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.APIPort != 8181 {
		t.Errorf("api_port = %d", cfg.Server.APIPort)
	}
	if cfg.Sessions.Budget() != 8*time.Hour || !cfg.Sessions.RequireEndTime {
		t.Errorf("sessions = %+v", cfg.Sessions)
	}
	if len(cfg.API.AllowedOrigins) != 1 {
		t.Errorf("allowed_origins = %v", cfg.API.AllowedOrigins)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("storage directory not created: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SESSIONTRACKER_SERVER_API_PORT", "7070")
	t.Setenv("SESSIONTRACKER_SESSIONS_DAILY_BUDGET", "10h")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.APIPort != 7070 {
		t.Errorf("api_port = %d, want 7070", cfg.Server.APIPort)
	}
	if cfg.Sessions.Budget() != 10*time.Hour {
		t.Errorf("Budget() = %v, want 10h", cfg.Sessions.Budget())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"port", "server:\n  api_port: 70000\n", "invalid API port"},
		{"storage type", "storage:\n  type: mongodb\n", "unsupported storage type"},
		{"missing path", "storage:\n  type: sqlite\n  path: \"\"\n", "storage path is required"},
		{"budget over a day", "sessions:\n  daily_budget: 25h\n", "daily_budget"},
		{"budget unparsable", "sessions:\n  daily_budget: lots\n", "daily_budget"},
		{"cache size", "users:\n  cache_size: -1\n", "cache_size"},
		{"log format", "logging:\n  format: xml\n", "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Logging.Format != "json" || cfg.API.RateLimit != 100 {
		t.Errorf("Defaults() = %+v", cfg)
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("90s", time.Second); got != 90*time.Second {
		t.Errorf("ParseDuration(90s) = %v", got)
	}
	if got := ParseDuration("nope", time.Second); got != time.Second {
		t.Errorf("ParseDuration(nope) = %v, want fallback", got)
	}
}
