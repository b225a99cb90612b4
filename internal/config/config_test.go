package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr :8080, got %s", cfg.Server.ListenAddr)
	}
	if cfg.OpenLibrary.BaseURL != "https://openlibrary.org" {
		t.Errorf("Unexpected base URL: %s", cfg.OpenLibrary.BaseURL)
	}
	if cfg.Search.Debounce != 200*time.Millisecond {
		t.Errorf("Expected 200ms debounce, got %v", cfg.Search.Debounce)
	}
	if cfg.Search.AllowStale {
		t.Errorf("Expected stale responses to be discarded by default")
	}
	if !cfg.Metrics.Enabled {
		t.Errorf("Expected metrics enabled by default")
	}
	if cfg.Log.ServiceName != "booksearch" {
		t.Errorf("Unexpected service name: %s", cfg.Log.ServiceName)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "booksearch.yaml")
	yaml := `
server:
  listen_addr: ":9090"
openlibrary:
  base_url: "http://localhost:4000"
  timeout: 5s
search:
  debounce: 350ms
  allow_stale: true
log:
  level: debug
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("BOOKSEARCH_SERVER_LISTEN_ADDR", ":7070")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.ListenAddr != ":7070" {
		t.Errorf("Expected env to override file, got %s", cfg.Server.ListenAddr)
	}
	if cfg.OpenLibrary.BaseURL != "http://localhost:4000" || cfg.OpenLibrary.Timeout != 5*time.Second {
		t.Errorf("Unexpected openlibrary config: %+v", cfg.OpenLibrary)
	}
	if cfg.Search.Debounce != 350*time.Millisecond || !cfg.Search.AllowStale {
		t.Errorf("Unexpected search config: %+v", cfg.Search)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug log level, got %s", cfg.Log.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("Expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "empty listen addr", mutate: func(c *Config) { c.Server.ListenAddr = "" }, want: "server.listen_addr"},
		{name: "relative base url", mutate: func(c *Config) { c.OpenLibrary.BaseURL = "openlibrary.org" }, want: "openlibrary.base_url"},
		{name: "negative debounce", mutate: func(c *Config) { c.Search.Debounce = -time.Second }, want: "search.debounce"},
		{name: "negative rate", mutate: func(c *Config) { c.OpenLibrary.RequestsPerSecond = -1 }, want: "requests_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
