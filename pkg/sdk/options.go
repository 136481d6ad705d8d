package resdex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	sourceDriver string
	sourceDSN    string
	tables       []string
	autoMigrate  bool
	history      bool

	embedder         Embedder
	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	embedTimeout     time.Duration
	syncWorkers      int
	usageWindowDays  int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the registry store: Redis 8 or Valkey with the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithSources points the client at the systems-of-record database.
// driver is "postgres" or "sqlite".
func WithSources(driver, dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sourceDriver = driver
		c.sourceDSN = dsn
	})
}

// WithTables limits discovery to the given source tables. Default: all four.
func WithTables(tables ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.tables = tables
	})
}

// WithAutoMigrate creates the source tables on connect.
func WithAutoMigrate() Option {
	return optionFunc(func(c *clientConfig) {
		c.autoMigrate = true
	})
}

// WithHistory stores every match call in the sources database.
func WithHistory() Option {
	return optionFunc(func(c *clientConfig) {
		c.history = true
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithVectorDimensions sets the embedding length and creates the vector index on connect.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithEmbedTimeout bounds each embedding call.
func WithEmbedTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedTimeout = d
	})
}

// WithSyncWorkers sets how many resources a sync applies in parallel. Default: 4.
func WithSyncWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.syncWorkers = n
	})
}

// WithUsageWindow sets the rolling window of the usage preference signal. Default: 30 days.
func WithUsageWindow(days int) Option {
	return optionFunc(func(c *clientConfig) {
		c.usageWindowDays = days
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
