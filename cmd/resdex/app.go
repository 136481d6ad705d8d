package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kailas-cloud/resdex/internal/config"
	"github.com/kailas-cloud/resdex/internal/db"
	dbRedis "github.com/kailas-cloud/resdex/internal/db/redis"
	"github.com/kailas-cloud/resdex/internal/domain"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
	logpkg "github.com/kailas-cloud/resdex/internal/logger"
	"github.com/kailas-cloud/resdex/internal/metrics"
	"github.com/kailas-cloud/resdex/internal/repository/embcache"
	historyrepo "github.com/kailas-cloud/resdex/internal/repository/history"
	registryrepo "github.com/kailas-cloud/resdex/internal/repository/registry"
	sourcerepo "github.com/kailas-cloud/resdex/internal/repository/source"
	usagerepo "github.com/kailas-cloud/resdex/internal/repository/usage"
	vectorrepo "github.com/kailas-cloud/resdex/internal/repository/vector"
	"github.com/kailas-cloud/resdex/internal/sqldb"
	openaiEmb "github.com/kailas-cloud/resdex/internal/transport/openai"
	"github.com/kailas-cloud/resdex/internal/usecase/discovery"
	embeddinguc "github.com/kailas-cloud/resdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/resdex/internal/usecase/health"
	"github.com/kailas-cloud/resdex/internal/usecase/matcher"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
	usageuc "github.com/kailas-cloud/resdex/internal/usecase/usage"
	"github.com/kailas-cloud/resdex/internal/usecase/vectorize"
)

// app is the composition root shared by every command.
type app struct {
	cfg    config.Config
	env    string
	logger *zap.Logger

	store db.Store
	gdb   *gorm.DB

	registry *registryrepo.Repo
	history  *historyrepo.Repo // nil when history is disabled
	sources  []sourcerepo.TableReader

	queryEmbedder domain.Embedder
	sync          *synchronizer.Service
	matcher       *matcher.Service
	usage         *usageuc.Tracker
	health        *healthuc.Service
}

// loadConfig resolves --config / --env and builds the logger.
func loadConfig(cmd *cobra.Command) (config.Config, string, *zap.Logger, error) {
	env, _ := cmd.Flags().GetString("env")
	if env == "" {
		env = config.GetEnv()
	}
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, "", nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, "", nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, env, logger, nil
}

// openSources opens the systems-of-record database and migrates it when configured.
func openSources(ctx context.Context, cfg config.Config, logger *zap.Logger) (*gorm.DB, error) {
	gdb, err := sqldb.Open(sqldb.Config{
		Driver:        cfg.Sources.Driver,
		DSN:           cfg.Sources.DSN,
		MaxOpenConns:  cfg.Sources.MaxOpenConns,
		MaxIdleConns:  cfg.Sources.MaxIdleConns,
		SlowThreshold: time.Duration(cfg.Sources.SlowQueryMs) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open sources: %w", err)
	}
	if err := sqldb.Ping(ctx, gdb); err != nil {
		logger.Warn("Sources database not reachable at startup", zap.Error(err))
	}
	return gdb, nil
}

// newApp wires every dependency. The caller must call close.
func newApp(ctx context.Context, cfg config.Config, env string, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, env: env, logger: logger}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterEngineMetrics()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		DB:         cfg.Database.DB,
		ClientName: "resdex",
	})
	if err != nil {
		return nil, fmt.Errorf("create registry store: %w", err)
	}
	a.store = store
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		a.close()
		return nil, fmt.Errorf("registry not ready: %w", err)
	}
	logger.Info("Connected to registry", zap.Strings("addrs", cfg.Database.Addrs))

	if a.gdb, err = openSources(ctx, cfg, logger); err != nil {
		a.close()
		return nil, err
	}
	if cfg.Sources.AutoMigrate {
		if err := sourcerepo.Migrate(a.gdb); err != nil {
			a.close()
			return nil, fmt.Errorf("migrate sources: %w", err)
		}
	}

	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	plan, err := domvec.ParsePlan(cfg.Embedding.Plan)
	if err != nil {
		return fmt.Errorf("embedding.plan: %w", err)
	}

	a.registry = registryrepo.New(a.store)
	vectors := vectorrepo.New(a.store)
	counters := usagerepo.New(a.store, cfg.Usage.WindowDays, time.Now)

	if err := a.registry.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("registry index: %w", err)
	}
	if cfg.Embedding.Dimensions > 0 {
		if err := vectors.EnsureIndex(ctx, vectorrepo.IndexConfig{
			Dim:         cfg.Embedding.Dimensions,
			Algorithm:   db.VectorHNSW,
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		}); err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
	} else {
		logger.Warn("embedding.dimensions is 0; vector index must already exist")
	}

	if cfg.History.Enabled {
		a.history = historyrepo.New(a.gdb)
		if err := a.history.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate history: %w", err)
		}
	}

	a.sources, err = sourcerepo.Readers(a.gdb, cfg.Sources.Tables, logger.Named("source"))
	if err != nil {
		return fmt.Errorf("sources.tables: %w", err)
	}
	discSources := make([]discovery.Source, len(a.sources))
	healthSources := make([]healthuc.SourceChecker, len(a.sources))
	for i, s := range a.sources {
		discSources[i] = s
		healthSources[i] = s
	}

	docEmbedder := a.buildEmbedder(cfg.Embedding.DocumentInstruction)
	a.queryEmbedder = a.buildEmbedder(cfg.Embedding.QueryInstruction)

	vec := vectorize.New(docEmbedder, vectors, vectorize.Config{
		Plan:         plan,
		EmbedTimeout: time.Duration(cfg.Embedding.TimeoutMs) * time.Millisecond,
		Dimensions:   cfg.Embedding.Dimensions,
	}, logger.Named("vectorize"))

	disc := discovery.New(discSources, logger.Named("discovery"))
	a.sync = synchronizer.New(disc, a.registry, vec, cfg.Sync.Workers, logger.Named("sync"))
	a.usage = usageuc.New(a.registry, counters, logger.Named("usage"))

	// Pass a nil interface, not a typed nil pointer, when history is off.
	var history matcher.HistoryWriter
	if a.history != nil {
		history = a.history
	}
	a.matcher = matcher.New(a.queryEmbedder, vectors, a.registry, a.usage, history, matcher.Config{
		EmbedTimeout:  time.Duration(cfg.Matcher.EmbedTimeoutMs) * time.Millisecond,
		SearchTimeout: time.Duration(cfg.Matcher.SearchTimeoutMs) * time.Millisecond,
	}, logger.Named("match"))

	a.health = healthuc.New(a.store, healthChecker(a.queryEmbedder), healthSources...)
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func (a *app) buildEmbedder(instruction string) domain.Embedder {
	ec := a.cfg.Embedding

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		User:       ec.User,
		Provider:   ec.Provider,
		MaxRetries: ec.MaxRetries,
		Logger:     a.logger.Named("openai"),
	})

	var embedder domain.Embedder = embcache.New(base, a.store, ec.Model,
		time.Duration(ec.CacheTTLHours)*time.Hour, metrics.EmbeddingCacheTotal, a.logger.Named("embcache"))

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, ec.Model, ec.Dimensions, a.logger)

	// Instruction prefix is outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func healthChecker(e domain.Embedder) healthuc.EmbeddingChecker {
	if hc, ok := e.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}

func (a *app) close() {
	if a.gdb != nil {
		if err := sqldb.Close(a.gdb); err != nil {
			a.logger.Warn("Closing sources database failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}
