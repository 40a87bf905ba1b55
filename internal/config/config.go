package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/paperfeed/internal/domain"
)

// Storage drivers.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config holds the paperfeed configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Index      IndexConfig      `yaml:"index"`
	Profile    ProfileConfig    `yaml:"profile"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StorageConfig selects and configures the paper/history store.
type StorageConfig struct {
	Driver           string   `yaml:"driver"` // redis, sqlite (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	DisableCache     bool     `yaml:"disable_client_cache"` // for servers without RESP3
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	SQLitePath       string   `yaml:"sqlite_path"`
	MaxSearches      int      `yaml:"max_searches"` // per-user history cap (redis)
	MaxViews         int      `yaml:"max_views"`
}

// EmbeddingConfig holds embedding provider and batching settings.
type EmbeddingConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	BatchSize    int    `yaml:"batch_size"`
	BatchDelayMs int    `yaml:"batch_delay_ms"`
	Workers      int    `yaml:"workers"`
	Cache        bool   `yaml:"cache"`           // cache embeddings in redis
	CacheTTLHrs  int    `yaml:"cache_ttl_hours"` // 0 = no expiry
	// Instruction prefixes for instruction-tuned models. Queries and profile
	// history use QueryInstruction, indexed papers use DocumentInstruction.
	QueryInstruction    string `yaml:"query_instruction"`
	DocumentInstruction string `yaml:"document_instruction"`
}

// CompletionConfig holds chat completion and circuit breaker settings.
type CompletionConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	BreakerFailures     int    `yaml:"breaker_failures"`
	BreakerOpenSec      int    `yaml:"breaker_open_sec"`
	BreakerHalfOpenReqs int    `yaml:"breaker_half_open_requests"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	DataDir string `yaml:"data_dir"`
}

// ProfileConfig tunes profile construction.
type ProfileConfig struct {
	HalfLifeDays  float64 `yaml:"half_life_days"`
	SearchLimit   int     `yaml:"search_limit"`
	ViewLimit     int     `yaml:"view_limit"`
	QueryWeight   float64 `yaml:"query_weight"`
	ViewWeight    float64 `yaml:"view_weight"`
	AbstractChars int     `yaml:"abstract_chars"`
}

// RecommendConfig tunes candidate generation and ranking.
type RecommendConfig struct {
	DefaultLimit     int     `yaml:"default_limit"`
	MaxLimit         int     `yaml:"max_limit"`
	PoolMultiplier   int     `yaml:"pool_multiplier"`
	RecencyScore     float64 `yaml:"recency_score"`
	SeenLimit        int     `yaml:"seen_limit"`
	SeenLookbackDays int     `yaml:"seen_lookback_days"`
}

// SearchConfig tunes query expansion.
type SearchConfig struct {
	DefaultK     int `yaml:"default_k"`
	MaxK         int `yaml:"max_k"`
	FanOutSec    int `yaml:"fan_out_timeout_sec"`
	CacheEntries int `yaml:"expansion_cache_entries"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	setInt(&c.HTTP.ReadTimeoutSec, 10)
	setInt(&c.HTTP.WriteTimeoutSec, 30)
	setInt(&c.HTTP.ShutdownSec, 10)

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverRedis
	}
	setInt(&c.Storage.ReadinessTimeout, 10)
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/paperfeed.db"
	}
	setInt(&c.Storage.MaxSearches, 500)
	setInt(&c.Storage.MaxViews, 500)

	vec := domain.DefaultVectorConfig()
	if c.Embedding.Model == "" {
		c.Embedding.Model = vec.Model
	}
	setInt(&c.Embedding.Dimensions, vec.Dimensions)
	setInt(&c.Embedding.BatchSize, vec.BatchSize)
	if c.Embedding.BatchDelayMs < 0 {
		c.Embedding.BatchDelayMs = 0
	}
	setInt(&c.Embedding.Workers, 1)

	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}
	if c.Completion.APIKey == "" {
		c.Completion.APIKey = c.Embedding.APIKey
	}
	if c.Completion.BaseURL == "" {
		c.Completion.BaseURL = c.Embedding.BaseURL
	}
	setInt(&c.Completion.TimeoutSec, 15)
	setInt(&c.Completion.BreakerFailures, 5)
	setInt(&c.Completion.BreakerOpenSec, 30)
	setInt(&c.Completion.BreakerHalfOpenReqs, 1)

	if c.Index.DataDir == "" {
		c.Index.DataDir = "data/index"
	}

	if c.Profile.HalfLifeDays <= 0 {
		c.Profile.HalfLifeDays = 14
	}
	setInt(&c.Profile.SearchLimit, 50)
	setInt(&c.Profile.ViewLimit, 50)
	if c.Profile.QueryWeight <= 0 {
		c.Profile.QueryWeight = 1
	}
	if c.Profile.ViewWeight <= 0 {
		c.Profile.ViewWeight = 2
	}
	setInt(&c.Profile.AbstractChars, 500)

	setInt(&c.Recommend.DefaultLimit, 20)
	setInt(&c.Recommend.MaxLimit, 100)
	setInt(&c.Recommend.PoolMultiplier, 4)
	if c.Recommend.RecencyScore <= 0 {
		c.Recommend.RecencyScore = 0.1
	}
	setInt(&c.Recommend.SeenLimit, 100)
	setInt(&c.Recommend.SeenLookbackDays, 365)

	setInt(&c.Search.DefaultK, 10)
	setInt(&c.Search.MaxK, 100)
	setInt(&c.Search.FanOutSec, 10)
	setInt(&c.Search.CacheEntries, 1024)
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Storage.Driver {
	case DriverRedis:
		if len(c.Storage.Addrs) == 0 {
			return fmt.Errorf("storage.addrs is required for driver %q", DriverRedis)
		}
	case DriverSQLite:
		if c.Embedding.Cache {
			return fmt.Errorf("embedding.cache requires storage.driver %q", DriverRedis)
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverRedis, DriverSQLite, c.Storage.Driver)
	}
	if c.Recommend.DefaultLimit > c.Recommend.MaxLimit {
		return fmt.Errorf("recommend.default_limit %d exceeds recommend.max_limit %d",
			c.Recommend.DefaultLimit, c.Recommend.MaxLimit)
	}
	if c.Search.DefaultK > c.Search.MaxK {
		return fmt.Errorf("search.default_k %d exceeds search.max_k %d", c.Search.DefaultK, c.Search.MaxK)
	}
	return nil
}

// BatchDelay returns the pacing between embedding batches.
func (c *EmbeddingConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
