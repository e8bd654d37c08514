package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/listingsearch/internal/domain"
)

// Config holds the listingsearch configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Backfill  BackfillConfig  `yaml:"backfill"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout settings. Listings live under KeyPrefix + Collection + ":".
type StorageConfig struct {
	KeyPrefix  string `yaml:"key_prefix"`
	Collection string `yaml:"collection"`
}

// ListingPrefix returns the key prefix of listing documents.
func (s StorageConfig) ListingPrefix() string {
	return s.KeyPrefix + s.Collection + ":"
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Name                  string `yaml:"name"`
	Dimensions            int    `yaml:"dimensions"`
	HNSWM                 int    `yaml:"hnsw_m"`
	HNSWEFConstruct       int    `yaml:"hnsw_ef_construction"`
	FilterableReviewScore bool   `yaml:"filterable_review_score"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string       `yaml:"provider"`
	APIKey            string       `yaml:"api_key"`
	BaseURL           string       `yaml:"base_url"`
	Model             string       `yaml:"model"`
	Dimensions        int          `yaml:"dimensions"`
	RequestsPerMinute int          `yaml:"requests_per_minute"` // 0 = unpaced
	QueryCacheTTLSec  int          `yaml:"query_cache_ttl_sec"` // 0 = default, <0 = cache disabled
	Budget            BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// RerankConfig holds rerank provider settings.
type RerankConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// BackfillConfig holds backfill engine settings.
type BackfillConfig struct {
	DefaultBatchSize int `yaml:"default_batch_size"`
	MaxBatchSize     int `yaml:"max_batch_size"`
	MaxIterations    int `yaml:"max_iterations"`
	RetryAttempts    int `yaml:"retry_attempts"`
	RetryIntervalMs  int `yaml:"retry_interval_ms"`
}

// SearchConfig holds request defaults applied when the caller omits a parameter.
type SearchConfig struct {
	NumCandidates       int     `yaml:"num_candidates"`
	Limit               int     `yaml:"limit"`
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "listingsearch:"
	}
	if c.Storage.Collection == "" {
		c.Storage.Collection = "listings"
	}
	if c.Index.Name == "" {
		c.Index.Name = "vector_index"
	}
	if c.Index.Dimensions <= 0 {
		c.Index.Dimensions = 768
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "gemini"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-004"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = c.Index.Dimensions
	}
	if c.Embedding.QueryCacheTTLSec == 0 {
		c.Embedding.QueryCacheTTLSec = 86400
	}
	if c.Embedding.Budget.Action == "" {
		c.Embedding.Budget.Action = "warn"
	}
	if c.Rerank.Model == "" {
		c.Rerank.Model = "rerank-v3.5"
	}
	if c.Rerank.TimeoutSec <= 0 {
		c.Rerank.TimeoutSec = 10
	}
	if c.Backfill.DefaultBatchSize <= 0 {
		c.Backfill.DefaultBatchSize = 50
	}
	if c.Backfill.MaxBatchSize <= 0 {
		c.Backfill.MaxBatchSize = domain.MaxEmbeddingBatchSize
	}
	if c.Backfill.MaxIterations <= 0 {
		c.Backfill.MaxIterations = 100_000
	}
	if c.Backfill.RetryAttempts <= 0 {
		c.Backfill.RetryAttempts = 3
	}
	if c.Backfill.RetryIntervalMs <= 0 {
		c.Backfill.RetryIntervalMs = 2000
	}
	if c.Search.NumCandidates <= 0 {
		c.Search.NumCandidates = 150
	}
	if c.Search.Limit <= 0 {
		c.Search.Limit = 10
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Index.Dimensions != c.Embedding.Dimensions {
		return fmt.Errorf("embedding.dimensions (%d) must match index.dimensions (%d)",
			c.Embedding.Dimensions, c.Index.Dimensions)
	}
	switch c.Embedding.Budget.Action {
	case "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	if c.Rerank.Enabled && c.Rerank.APIKey == "" {
		return fmt.Errorf("rerank.api_key is required when rerank is enabled")
	}
	if c.Backfill.MaxBatchSize > domain.MaxEmbeddingBatchSize {
		return fmt.Errorf("backfill.max_batch_size (%d) exceeds the provider batch limit %d",
			c.Backfill.MaxBatchSize, domain.MaxEmbeddingBatchSize)
	}
	if c.Backfill.DefaultBatchSize > c.Backfill.MaxBatchSize {
		return fmt.Errorf("backfill.default_batch_size (%d) exceeds backfill.max_batch_size (%d)",
			c.Backfill.DefaultBatchSize, c.Backfill.MaxBatchSize)
	}
	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search.similarity_threshold must be between 0 and 1, got %v", c.Search.SimilarityThreshold)
	}
	return nil
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
