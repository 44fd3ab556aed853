package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{Quality: QualityAccurate},
		Match:     MatchConfig{Cutoff: 0.6, Threshold: 0.5},
		JWT: JWTConfig{
			Secret:          "secret",
			Algorithm:       "HS256",
			AccessLifespan:  Lifespan{Minutes: 30},
			RefreshLifespan: Lifespan{Days: 7},
		},
		Password: PasswordConfig{GlobalSalt: "salt", Iterations: 1000, HashFunction: "sha256"},
	}
}

func TestLifespan_Duration(t *testing.T) {
	tests := []struct {
		name     string
		lifespan Lifespan
		expected time.Duration
	}{
		{"zero", Lifespan{}, 0},
		{"minutes only", Lifespan{Minutes: 30}, 30 * time.Minute},
		{"mixed", Lifespan{Days: 1, Hours: 2, Minutes: 3}, 26*time.Hour + 3*time.Minute},
		{"days", Lifespan{Days: 7}, 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lifespan.Duration(); got != tt.expected {
				t.Errorf("Duration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"WEB_PORT", "DATABASE_DRIVER", "EMBEDDING_QUALITY", "MATCH_CUTOFF",
		"MATCH_PROB_THRESHOLD", "MATCH_POLICY", "JWT_ALGORITHM", "JWT_ACCESS_EXPIRE_MINUTES",
		"JWT_REFRESH_EXPIRE_DAYS", "PASSWORD_HASH_ITERATIONS", "CLIENTS_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Web.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Web.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.Database.Driver)
	}
	if cfg.Embedding.Quality != QualityAccurate {
		t.Errorf("expected accurate quality, got %s", cfg.Embedding.Quality)
	}
	if cfg.Match.Cutoff != 0.6 {
		t.Errorf("expected cutoff 0.6, got %v", cfg.Match.Cutoff)
	}
	if cfg.Match.Policy != "first" {
		t.Errorf("expected first policy, got %s", cfg.Match.Policy)
	}
	if cfg.JWT.AccessLifespan.Duration() != 30*time.Minute {
		t.Errorf("expected 30m access lifespan, got %v", cfg.JWT.AccessLifespan.Duration())
	}
	if cfg.JWT.RefreshLifespan.Duration() != 7*24*time.Hour {
		t.Errorf("expected 7d refresh lifespan, got %v", cfg.JWT.RefreshLifespan.Duration())
	}
	if cfg.ClientsFile != "clients.yaml" {
		t.Errorf("expected clients.yaml, got %s", cfg.ClientsFile)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "MariaDB")
	t.Setenv("MATCH_PROB_THRESHOLD", "0.8")
	t.Setenv("JWT_ALGORITHM", "hs512")
	t.Setenv("JWT_ACCESS_EXPIRE_HOURS", "2")
	t.Setenv("JWT_ACCESS_EXPIRE_MINUTES", "0")
	t.Setenv("EMBEDDING_TIMEOUT_SECONDS", "5")
	t.Setenv("DATABASE_CLEAR_ON_START", "true")

	cfg := Load()

	if cfg.Database.Driver != "mariadb" {
		t.Errorf("expected driver to be lowercased, got %s", cfg.Database.Driver)
	}
	if cfg.Match.Threshold != 0.8 {
		t.Errorf("expected threshold 0.8, got %v", cfg.Match.Threshold)
	}
	if cfg.JWT.Algorithm != "HS512" {
		t.Errorf("expected algorithm to be uppercased, got %s", cfg.JWT.Algorithm)
	}
	if cfg.JWT.AccessLifespan.Duration() != 2*time.Hour {
		t.Errorf("expected 2h access lifespan, got %v", cfg.JWT.AccessLifespan.Duration())
	}
	if cfg.Embedding.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Embedding.Timeout)
	}
	if !cfg.Database.ClearOnStart {
		t.Error("expected ClearOnStart to be true")
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("TEST_ENV_LIST", " https://a.example, ,https://b.example,")
	got := envList("TEST_ENV_LIST")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("envList() = %v", got)
	}
	t.Setenv("TEST_ENV_LIST", "")
	if got := envList("TEST_ENV_LIST"); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestEnvInt_Invalid(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "not-a-number")
	if got := envInt("TEST_ENV_INT", 42); got != 42 {
		t.Errorf("expected default 42, got %d", got)
	}
	t.Setenv("TEST_ENV_INT", "-3")
	if got := envInt("TEST_ENV_INT", 42); got != 42 {
		t.Errorf("expected default 42 for negative value, got %d", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET"},
		{"bad algorithm", func(c *Config) { c.JWT.Algorithm = "RS256" }, "JWT_ALGORITHM"},
		{"zero access lifespan", func(c *Config) { c.JWT.AccessLifespan = Lifespan{} }, "access token lifespan"},
		{"zero refresh lifespan", func(c *Config) { c.JWT.RefreshLifespan = Lifespan{} }, "refresh token lifespan"},
		{"missing salt", func(c *Config) { c.Password.GlobalSalt = "" }, "PASSWORD_GLOBAL_SALT"},
		{"bad quality", func(c *Config) { c.Embedding.Quality = "cnn" }, "EMBEDDING_QUALITY"},
		{"threshold too high", func(c *Config) { c.Match.Threshold = 1 }, "MATCH_PROB_THRESHOLD"},
		{"zero cutoff", func(c *Config) { c.Match.Cutoff = 0 }, "MATCH_CUTOFF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseClients(t *testing.T) {
	data := []byte(`
clients:
  - login: terminal-1
    password: one
  - login: terminal-2
    password: two
`)
	clients, err := ParseClients(data)
	if err != nil {
		t.Fatalf("ParseClients() error = %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	if clients[0].Login != "terminal-1" || clients[1].Password != "two" {
		t.Errorf("unexpected clients: %+v", clients)
	}
}

func TestParseClients_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing password", "clients:\n  - login: a\n"},
		{"missing login", "clients:\n  - password: a\n"},
		{"duplicate", "clients:\n  - login: a\n    password: b\n  - login: a\n    password: c\n"},
		{"not yaml", "clients: [::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseClients([]byte(tt.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadClients_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.yaml")
	if err := os.WriteFile(path, []byte("clients:\n  - login: gate\n    password: pw\n"), 0o600); err != nil {
		t.Fatalf("write clients file: %v", err)
	}

	clients, err := LoadClients(path)
	if err != nil {
		t.Fatalf("LoadClients() error = %v", err)
	}
	if len(clients) != 1 || clients[0].Login != "gate" {
		t.Errorf("unexpected clients: %+v", clients)
	}

	if _, err := LoadClients(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
