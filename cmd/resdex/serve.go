package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/resdex/internal/config"
	chiTransport "github.com/kailas-cloud/resdex/internal/transport/chi"
	notifypg "github.com/kailas-cloud/resdex/internal/transport/notify/pg"
	notifyredis "github.com/kailas-cloud/resdex/internal/transport/notify/redis"
	"github.com/kailas-cloud/resdex/internal/usecase/listener"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
	"github.com/kailas-cloud/resdex/internal/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the change listener and periodic sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, env, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger.Info("Starting resdex",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.String("env", env),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, env, logger)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	deps := chiTransport.Deps{
		Matcher:   a.matcher,
		Syncer:    a.sync,
		Outcomes:  a.usage,
		Resources: a.registry,
		Health:    a.health,
	}
	if a.history != nil {
		deps.History = a.history
	}
	server := chiTransport.NewServer(deps, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.Int("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	var changes changeRunner
	if sub := a.subscriber(); sub != nil {
		changes = listener.New(sub, a.sync, listenerConfig(cfg.Listener), logger.Named("listener"))
	} else {
		logger.Info("Change listener disabled")
	}
	var startup func(context.Context)
	if !cfg.Sync.SkipStartup {
		startup = func(ctx context.Context) { a.runSync(ctx, synchronizer.ModeFull, "startup") }
	}
	startListenerThenSync(gctx, g, changes, startup)

	if cfg.Sync.FullIntervalSec > 0 {
		interval := time.Duration(cfg.Sync.FullIntervalSec) * time.Second
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					a.runSync(gctx, synchronizer.ModeFull, "periodic")
				}
			}
		})
	}

	err := g.Wait()
	logger.Info("Server stopped")
	return err
}

type changeRunner interface {
	Run(ctx context.Context) error
	Started() <-chan struct{}
}

// startListenerThenSync runs the listener and, once it is subscribing, the startup
// sync, so changes made while the sync reads are still delivered.
func startListenerThenSync(ctx context.Context, g *errgroup.Group, l changeRunner, startup func(context.Context)) {
	if l != nil {
		g.Go(func() error { return l.Run(ctx) })
	}
	if startup == nil {
		return
	}
	g.Go(func() error {
		if l != nil {
			select {
			case <-l.Started():
			case <-ctx.Done():
				return nil
			}
		}
		startup(ctx)
		return nil
	})
}

// runSync logs the outcome of a scheduled reconciliation; failures never stop the server.
func (a *app) runSync(ctx context.Context, mode synchronizer.Mode, trigger string) {
	report, err := a.sync.Sync(ctx, mode, nil)
	if err != nil {
		a.logger.Error("Sync failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	a.logger.Info("Sync finished",
		zap.String("trigger", trigger),
		zap.Int("added", len(report.Added)),
		zap.Int("modified", len(report.Modified)),
		zap.Int("deleted", len(report.Deleted)),
		zap.Int("failed", len(report.Failed)),
		zap.Strings("unreachable", report.Unreachable),
		zap.Duration("duration", report.Duration),
	)
}

// subscriber picks the notification transport; nil disables the listener.
func (a *app) subscriber() listener.Subscriber {
	lc := a.cfg.Listener
	switch lc.Driver {
	case config.ListenerPostgres:
		return notifypg.New(lc.DSN, lc.Channel, a.logger.Named("pg"))
	case config.ListenerRedis:
		return notifyredis.New(a.store, lc.Channel)
	default:
		return nil
	}
}

func listenerConfig(lc config.ListenerConfig) listener.Config {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return listener.Config{
		MaxBatchSize:   lc.MaxBatchSize,
		BatchDelay:     ms(lc.BatchDelayMs),
		QueueSize:      lc.QueueSize,
		DedupCap:       lc.DedupCap,
		DedupKeep:      lc.DedupKeep,
		InitialBackoff: ms(lc.InitialBackoffMs),
		MaxBackoff:     ms(lc.MaxBackoffMs),
		SyncTimeout:    time.Duration(lc.SyncTimeoutSec) * time.Second,
	}
}
