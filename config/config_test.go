package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "start page below one",
			mutate: func(cfg *Config) {
				cfg.StartPage = 0
			},
			wantErr: "start page",
		},
		{
			name: "empty endpoint",
			mutate: func(cfg *Config) {
				cfg.Endpoint = ""
			},
			wantErr: "endpoint",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.Endpoint = "http://"
			},
			wantErr: "endpoint",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "inverted delay bounds",
			mutate: func(cfg *Config) {
				cfg.DelayMin = 8 * time.Second
				cfg.DelayMax = 4 * time.Second
			},
			wantErr: "delay max",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "empty query",
			mutate: func(cfg *Config) {
				cfg.Search.Query = ""
			},
			wantErr: "search query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.StartPage != 1 || cfg.MaxPages != 20 {
		t.Fatalf("pages = %d..%d, want 1..20", cfg.StartPage, cfg.LastPage())
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.DedupeMaxSize != 0 {
		t.Fatalf("dedupe size = %d, want 0 (off)", cfg.DedupeMaxSize)
	}
}

func TestMissingCredentials(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.MissingCredentials(); len(got) != 2 {
		t.Fatalf("missing = %v, want cookie and csrf token", got)
	}
	cfg.Headers.Set("Cookie", "a=b")
	cfg.Headers.Set("X-Csrf-Token", "tok")
	if got := cfg.MissingCredentials(); len(got) != 0 {
		t.Fatalf("missing = %v, want none", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SCRAPER_TEST_PAGES", " 7 ")
	t.Setenv("SCRAPER_TEST_BAD", "seven")
	t.Setenv("SCRAPER_TEST_DELAY", "1500ms")

	if v, ok, err := EnvInt("SCRAPER_TEST_PAGES"); err != nil || !ok || v != 7 {
		t.Fatalf("EnvInt = %d, %v, %v", v, ok, err)
	}
	if _, _, err := EnvInt("SCRAPER_TEST_BAD"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, ok, err := EnvInt("SCRAPER_TEST_UNSET"); ok || err != nil {
		t.Fatalf("unset key should report not found")
	}
	if d, ok, err := EnvDuration("SCRAPER_TEST_DELAY"); err != nil || !ok || d != 1500*time.Millisecond {
		t.Fatalf("EnvDuration = %v, %v, %v", d, ok, err)
	}
}

func TestLoadHeaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "headers.yaml")
	content := `headers:
  user-agent: test-agent
  accept-encoding: gzip, deflate, br, zstd
cookie: from-file
csrf_token: file-token
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write headers file: %v", err)
	}
	t.Setenv("SCRAPER_CSRF_TOKEN", "env-token")

	headers, err := LoadHeaders(path)
	if err != nil {
		t.Fatalf("load headers: %v", err)
	}
	if got := headers.Get("User-Agent"); got != "test-agent" {
		t.Fatalf("user agent = %q", got)
	}
	if got := headers.Get("Cookie"); got != "from-file" {
		t.Fatalf("cookie = %q", got)
	}
	if got := headers.Get("X-Csrf-Token"); got != "env-token" {
		t.Fatalf("csrf token = %q, want env override", got)
	}
	if got := headers.Get("Accept-Encoding"); got != "" {
		t.Fatalf("accept-encoding should be dropped, got %q", got)
	}
	if got := headers.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}
}

func TestLoadHeadersMissingFile(t *testing.T) {
	if _, err := LoadHeaders(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing headers file")
	}
}
