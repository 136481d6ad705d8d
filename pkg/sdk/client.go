package resdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kailas-cloud/resdex/internal/db"
	dbRedis "github.com/kailas-cloud/resdex/internal/db/redis"
	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domusage "github.com/kailas-cloud/resdex/internal/domain/usage"
	historyrepo "github.com/kailas-cloud/resdex/internal/repository/history"
	registryrepo "github.com/kailas-cloud/resdex/internal/repository/registry"
	sourcerepo "github.com/kailas-cloud/resdex/internal/repository/source"
	usagerepo "github.com/kailas-cloud/resdex/internal/repository/usage"
	vectorrepo "github.com/kailas-cloud/resdex/internal/repository/vector"
	"github.com/kailas-cloud/resdex/internal/sqldb"
	"github.com/kailas-cloud/resdex/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/resdex/internal/usecase/health"
	"github.com/kailas-cloud/resdex/internal/usecase/matcher"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
	usageuc "github.com/kailas-cloud/resdex/internal/usecase/usage"
	"github.com/kailas-cloud/resdex/internal/usecase/vectorize"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultHNSWM            = 16
	defaultHNSWEFConstruct  = 200
)

// Internal interfaces, substituted in tests.
type matchUseCase interface {
	Match(ctx context.Context, req match.Request) ([]match.Result, error)
}

type syncUseCase interface {
	Sync(ctx context.Context, mode synchronizer.Mode, tables []string) (synchronizer.Report, error)
}

type outcomeUseCase interface {
	RecordOutcome(ctx context.Context, o domusage.Outcome) error
}

type registryReader interface {
	Get(ctx context.Context, id string) (resource.Resource, error)
}

// Client is the resdex SDK entry point.
type Client struct {
	store     db.Store
	gdb       *gorm.DB
	matchSvc  matchUseCase
	syncSvc   syncUseCase
	usageSvc  outcomeUseCase
	registry  registryReader
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, connects to the registry store and the sources database,
// and creates the search indexes.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.addrs,
		Password:   cfg.password,
		ClientName: "resdex-sdk",
	})
	if err != nil {
		return nil, fmt.Errorf("resdex: create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("resdex: registry not ready: %w", err)
	}

	gdb, err := sqldb.Open(sqldb.Config{Driver: cfg.sourceDriver, DSN: cfg.sourceDSN}, zap.NewNop())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("resdex: open sources: %w", err)
	}

	c, err := wireClient(ctx, store, gdb, cfg, obs)
	if err != nil {
		_ = sqldb.Close(gdb)
		store.Close()
		return nil, err
	}
	return c, nil
}

func (cfg *clientConfig) validate() error {
	var errs []error
	if len(cfg.addrs) == 0 {
		errs = append(errs, errors.New("registry address required (use WithRedis)"))
	}
	if cfg.sourceDSN == "" {
		errs = append(errs, errors.New("sources database required (use WithSources)"))
	}
	if cfg.embedder == nil {
		errs = append(errs, errors.New("embedder required (use WithEmbedder)"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("resdex: %w", errors.Join(errs...))
	}
	return nil
}

func wireClient(ctx context.Context, store db.Store, gdb *gorm.DB, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := zap.NewNop()

	if cfg.autoMigrate {
		if err := sourcerepo.Migrate(gdb); err != nil {
			return nil, fmt.Errorf("resdex: migrate sources: %w", err)
		}
	}

	registry := registryrepo.New(store)
	vectors := vectorrepo.New(store)
	if err := registry.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("resdex: registry index: %w", err)
	}
	if cfg.vectorDimensions > 0 {
		m, ef := cfg.hnswM, cfg.hnswEFConstruct
		if m <= 0 {
			m = defaultHNSWM
		}
		if ef <= 0 {
			ef = defaultHNSWEFConstruct
		}
		if err := vectors.EnsureIndex(ctx, vectorrepo.IndexConfig{
			Dim: cfg.vectorDimensions, Algorithm: db.VectorHNSW, M: m, EFConstruct: ef,
		}); err != nil {
			return nil, fmt.Errorf("resdex: vector index: %w", err)
		}
	}

	readers, err := sourcerepo.Readers(gdb, cfg.tables, logger)
	if err != nil {
		return nil, fmt.Errorf("resdex: %w", err)
	}
	sources := make([]discovery.Source, len(readers))
	checks := make([]healthuc.SourceChecker, len(readers))
	for i, r := range readers {
		sources[i] = r
		checks[i] = r
	}

	embed := &embedderAdapter{inner: cfg.embedder}
	vec := vectorize.New(embed, vectors, vectorize.Config{
		EmbedTimeout: cfg.embedTimeout,
		Dimensions:   cfg.vectorDimensions,
	}, logger)

	window := cfg.usageWindowDays
	if window <= 0 {
		window = domusage.WindowDays
	}
	tracker := usageuc.New(registry, usagerepo.New(store, window, time.Now), logger)

	var history matcher.HistoryWriter
	if cfg.history {
		h := historyrepo.New(gdb)
		if err := h.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("resdex: migrate history: %w", err)
		}
		history = h
	}

	return &Client{
		store:     store,
		gdb:       gdb,
		matchSvc:  matcher.New(embed, vectors, registry, tracker, history, matcher.Config{EmbedTimeout: cfg.embedTimeout}, logger),
		syncSvc:   synchronizer.New(discovery.New(sources, logger), registry, vec, cfg.syncWorkers, logger),
		usageSvc:  tracker,
		registry:  registry,
		healthSvc: healthuc.New(store, nil, checks...),
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.gdb != nil {
		_ = sqldb.Close(c.gdb)
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks registry connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(r.TotalTokens)
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
