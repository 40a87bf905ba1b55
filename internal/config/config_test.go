package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Storage: StorageConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Storage.Driver != DriverRedis {
		t.Errorf("expected default driver %q, got %q", DriverRedis, cfg.Storage.Driver)
	}
	if cfg.Completion.TimeoutSec != 15 || cfg.Search.FanOutSec != 10 {
		t.Errorf("unexpected timeouts %d / %d", cfg.Completion.TimeoutSec, cfg.Search.FanOutSec)
	}
	if cfg.Recommend.SeenLimit != 100 || cfg.Recommend.SeenLookbackDays != 365 {
		t.Errorf("unexpected seen defaults %d / %d", cfg.Recommend.SeenLimit, cfg.Recommend.SeenLookbackDays)
	}
	if cfg.Profile.HalfLifeDays != 14 {
		t.Errorf("expected 14-day half-life, got %v", cfg.Profile.HalfLifeDays)
	}
}

func TestApplyDefaults_CompletionInheritsEmbeddingCredentials(t *testing.T) {
	cfg := Config{Embedding: EmbeddingConfig{APIKey: "k", BaseURL: "https://llm.example/v1"}}
	cfg.ApplyDefaults()

	if cfg.Completion.APIKey != "k" || cfg.Completion.BaseURL != "https://llm.example/v1" {
		t.Errorf("completion should inherit embedding credentials, got %+v", cfg.Completion)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"redis without addrs", func(c *Config) { c.Storage.Addrs = nil }, "storage.addrs"},
		{"sqlite without addrs", func(c *Config) { c.Storage.Driver = DriverSQLite; c.Storage.Addrs = nil }, ""},
		{"sqlite with cache", func(c *Config) { c.Storage.Driver = DriverSQLite; c.Embedding.Cache = true }, "embedding.cache"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"default over max", func(c *Config) { c.Recommend.DefaultLimit = 500 }, "recommend.default_limit"},
		{"k over max", func(c *Config) { c.Search.DefaultK = 1000 }, "search.default_k"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PAPERFEED_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("a: ${PAPERFEED_TEST_KEY}\nb: ${PAPERFEED_TEST_UNSET:-fallback}\nc: ${PAPERFEED_TEST_UNSET}")))
	want := "a: secret\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PAPERFEED_TEST_PORT", "9090")
	path := filepath.Join(t.TempDir(), "test.yaml")
	yml := `http:
  port: ${PAPERFEED_TEST_PORT}
storage:
  driver: sqlite
  sqlite_path: /tmp/pf.db
embedding:
  dimensions: 8
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTP.Port != 9090 || cfg.Storage.Driver != DriverSQLite || cfg.Embedding.Dimensions != 8 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected validation error")
	}
}
