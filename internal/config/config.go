package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the resdex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Sources   SourcesConfig   `yaml:"sources"`
	History   HistoryConfig   `yaml:"history"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Sync      SyncConfig      `yaml:"sync"`
	Listener  ListenerConfig  `yaml:"listener"`
	Usage     UsageConfig     `yaml:"usage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
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

// DatabaseConfig holds the registry (Redis) connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SourcesConfig points at the systems of record.
type SourcesConfig struct {
	Driver       string   `yaml:"driver"` // postgres, sqlite
	DSN          string   `yaml:"dsn"`
	Tables       []string `yaml:"tables"` // empty = all known tables
	MaxOpenConns int      `yaml:"max_open_conns"`
	MaxIdleConns int      `yaml:"max_idle_conns"`
	SlowQueryMs  int      `yaml:"slow_query_ms"`
	AutoMigrate  bool     `yaml:"auto_migrate"`
}

// HistoryConfig controls match history persistence. It shares the sources database.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider            string              `yaml:"provider"`
	APIKey              string              `yaml:"api_key"`
	BaseURL             string              `yaml:"base_url"`
	Model               string              `yaml:"model"`
	Dimensions          int                 `yaml:"dimensions"`
	User                string              `yaml:"user"`
	TimeoutMs           int                 `yaml:"timeout_ms"`
	MaxRetries          int                 `yaml:"max_retries"`
	CacheTTLHours       int                 `yaml:"cache_ttl_hours"` // 0 = no expiry
	DocumentInstruction string              `yaml:"document_instruction"`
	QueryInstruction    string              `yaml:"query_instruction"`
	Plan                map[string][]string `yaml:"plan"` // resource type -> vector types
}

// IndexConfig holds HNSW index settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// MatcherConfig holds per-stage matcher timeouts.
type MatcherConfig struct {
	EmbedTimeoutMs  int `yaml:"embed_timeout_ms"`
	SearchTimeoutMs int `yaml:"search_timeout_ms"`
}

// SyncConfig controls startup and periodic reconciliation.
type SyncConfig struct {
	SkipStartup     bool `yaml:"skip_startup"`
	FullIntervalSec int  `yaml:"full_interval_sec"` // 0 disables the periodic full sync
	Workers         int  `yaml:"workers"`
}

// Listener drivers.
const (
	ListenerRedis    = "redis"
	ListenerPostgres = "postgres"
	ListenerNone     = "none"
)

// ListenerConfig controls change notification intake.
type ListenerConfig struct {
	Driver           string `yaml:"driver"` // redis, postgres, none
	Channel          string `yaml:"channel"`
	DSN              string `yaml:"dsn"` // postgres only; defaults to sources.dsn
	MaxBatchSize     int    `yaml:"max_batch_size"`
	BatchDelayMs     int    `yaml:"batch_delay_ms"`
	QueueSize        int    `yaml:"queue_size"`
	DedupCap         int    `yaml:"dedup_cap"`
	DedupKeep        int    `yaml:"dedup_keep"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int    `yaml:"max_backoff_ms"`
	SyncTimeoutSec   int    `yaml:"sync_timeout_sec"`
}

// UsageConfig holds the rolling usage window.
type UsageConfig struct {
	WindowDays int `yaml:"window_days"`
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
		// a FULL sync over HTTP can take a while
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Sources.Driver == "" {
		c.Sources.Driver = "postgres"
	}
	if c.Sources.MaxOpenConns <= 0 {
		c.Sources.MaxOpenConns = 10
	}
	if c.Sources.MaxIdleConns <= 0 {
		c.Sources.MaxIdleConns = 2
	}
	if c.Sources.SlowQueryMs <= 0 {
		c.Sources.SlowQueryMs = 500
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 10000
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Matcher.EmbedTimeoutMs <= 0 {
		c.Matcher.EmbedTimeoutMs = 5000
	}
	if c.Matcher.SearchTimeoutMs <= 0 {
		c.Matcher.SearchTimeoutMs = 2000
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 4
	}
	c.applyListenerDefaults()
	if c.Usage.WindowDays <= 0 {
		c.Usage.WindowDays = 30
	}
}

func (c *Config) applyListenerDefaults() {
	l := &c.Listener
	if l.Driver == "" {
		l.Driver = ListenerRedis
	}
	if l.Driver == ListenerPostgres && l.DSN == "" {
		l.DSN = c.Sources.DSN
	}
	if l.MaxBatchSize <= 0 {
		l.MaxBatchSize = 50
	}
	if l.BatchDelayMs <= 0 {
		l.BatchDelayMs = 2000
	}
	if l.QueueSize <= 0 {
		l.QueueSize = 1000
	}
	if l.DedupCap <= 0 {
		l.DedupCap = 10000
	}
	if l.DedupKeep <= 0 {
		l.DedupKeep = l.DedupCap / 2
	}
	if l.InitialBackoffMs <= 0 {
		l.InitialBackoffMs = 500
	}
	if l.MaxBackoffMs <= 0 {
		l.MaxBackoffMs = 30000
	}
	if l.SyncTimeoutSec <= 0 {
		l.SyncTimeoutSec = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if len(c.Database.Addrs) == 0 {
		errs = append(errs, errors.New("database.addrs is required"))
	}
	switch c.Sources.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("sources.driver must be \"postgres\" or \"sqlite\", got %q", c.Sources.Driver))
	}
	if c.Sources.DSN == "" {
		errs = append(errs, errors.New("sources.dsn is required"))
	}
	if c.Embedding.Model == "" {
		errs = append(errs, errors.New("embedding.model is required"))
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions))
	}
	if c.Sync.FullIntervalSec < 0 {
		errs = append(errs, fmt.Errorf("sync.full_interval_sec must not be negative, got %d", c.Sync.FullIntervalSec))
	}
	switch c.Listener.Driver {
	case ListenerRedis, ListenerNone:
	case ListenerPostgres:
		if c.Listener.DSN == "" {
			errs = append(errs, errors.New("listener.dsn is required for the postgres listener"))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"listener.driver must be \"redis\", \"postgres\" or \"none\", got %q", c.Listener.Driver))
	}
	if c.Listener.DedupKeep > c.Listener.DedupCap {
		errs = append(errs, fmt.Errorf("listener.dedup_keep (%d) must not exceed listener.dedup_cap (%d)",
			c.Listener.DedupKeep, c.Listener.DedupCap))
	}
	return errors.Join(errs...)
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
