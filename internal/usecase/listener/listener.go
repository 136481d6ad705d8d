// Package listener turns change notifications into batched incremental syncs.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/change"
	"github.com/kailas-cloud/resdex/internal/metrics"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

// Config tunes batching, deduplication and reconnects.
type Config struct {
	MaxBatchSize   int
	BatchDelay     time.Duration
	QueueSize      int
	DedupCap       int
	DedupKeep      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	SyncTimeout    time.Duration
}

// Defaults.
const (
	DefaultMaxBatchSize   = 50
	DefaultBatchDelay     = 2 * time.Second
	DefaultQueueSize      = 1000
	DefaultDedupCap       = 10000
	DefaultDedupKeep      = 5000
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
	DefaultSyncTimeout    = 5 * time.Minute
)

func (c *Config) applyDefaults() {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = DefaultBatchDelay
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.DedupCap <= 0 {
		c.DedupCap = DefaultDedupCap
	}
	if c.DedupKeep <= 0 {
		c.DedupKeep = DefaultDedupKeep
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = DefaultSyncTimeout
	}
}

// Listener owns the subscription. One goroutine decodes notifications into a
// bounded queue; another deduplicates, batches and dispatches flushes.
type Listener struct {
	sub    Subscriber
	syncer Syncer
	cfg    Config
	logger *zap.Logger

	flushes   sync.WaitGroup
	started   chan struct{}
	startOnce sync.Once
	now       func() time.Time
}

// New creates a listener.
func New(sub Subscriber, syncer Syncer, cfg Config, logger *zap.Logger) *Listener {
	cfg.applyDefaults()
	return &Listener{
		sub:     sub,
		syncer:  syncer,
		cfg:     cfg,
		logger:  logger,
		started: make(chan struct{}),
		now:     time.Now,
	}
}

// Started is closed once the first subscription attempt begins.
func (l *Listener) Started() <-chan struct{} { return l.started }

// Run blocks until ctx is cancelled. On stop it drains queued events, flushes the
// pending batch and waits for in-flight syncs before returning.
func (l *Listener) Run(ctx context.Context) error {
	events := make(chan change.Event, l.cfg.QueueSize)

	go func() {
		defer close(events)
		l.intake(ctx, events)
	}()

	l.aggregate(context.WithoutCancel(ctx), events)
	l.logger.Info("change listener stopped")
	return nil
}

func (l *Listener) intake(ctx context.Context, events chan<- change.Event) {
	var lastReceived time.Time
	handle := func(payload []byte) {
		ev, err := change.Decode(payload)
		if err != nil {
			metrics.ListenerEventsTotal.WithLabelValues("malformed").Inc()
			l.logger.Warn("dropping malformed notification",
				zap.ByteString("payload", truncate(payload, 256)), zap.Error(err))
			return
		}
		if ev.Timestamp == "" {
			at := l.now()
			if !at.After(lastReceived) {
				at = lastReceived.Add(time.Nanosecond)
			}
			lastReceived = at
			ev = ev.Stamped(at)
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			l.logger.Warn("listener stopping, notification not queued",
				zap.String("table", ev.SourceTable), zap.String("record_id", ev.RecordID))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.cfg.InitialBackoff
	bo.MaxInterval = l.cfg.MaxBackoff
	bo.Reset()

	op := func() (struct{}, error) {
		connectedAt := time.Now()
		l.startOnce.Do(func() { close(l.started) })
		err := l.sub.Subscribe(ctx, handle)
		if err == nil || ctx.Err() != nil {
			return struct{}{}, nil
		}
		// A long-lived connection starts the next reconnect from the initial interval.
		if time.Since(connectedAt) > l.cfg.MaxBackoff {
			bo.Reset()
		}
		return struct{}{}, fmt.Errorf("%w: %w", domain.ErrListenerConnectionLost, err)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			metrics.ListenerReconnectsTotal.Inc()
			l.logger.Warn("notification subscription lost, reconnecting",
				zap.Duration("backoff", d), zap.Error(err))
		}),
	)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		l.logger.Error("notification subscription gave up", zap.Error(err))
	}
}

func (l *Listener) aggregate(syncCtx context.Context, events <-chan change.Event) {
	seen := newRecentKeys(l.cfg.DedupCap, l.cfg.DedupKeep)
	var pending []change.Event

	timer := time.NewTimer(l.cfg.BatchDelay)
	timer.Stop()
	defer timer.Stop()

	flush := func(trigger string) {
		timer.Stop()
		batch := pending
		pending = nil
		metrics.ListenerFlushesTotal.WithLabelValues(trigger).Inc()
		l.flushes.Add(1)
		go func() {
			defer l.flushes.Done()
			l.dispatch(syncCtx, batch)
		}()
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if len(pending) > 0 {
					flush("drain")
				}
				l.flushes.Wait()
				return
			}
			if !seen.add(ev.Key()) {
				metrics.ListenerEventsTotal.WithLabelValues("duplicate").Inc()
				continue
			}
			metrics.ListenerEventsTotal.WithLabelValues("accepted").Inc()
			if len(pending) == 0 {
				timer.Reset(l.cfg.BatchDelay)
			}
			pending = append(pending, ev)
			if len(pending) >= l.cfg.MaxBatchSize {
				flush("size")
			}
		case <-timer.C:
			if len(pending) > 0 {
				flush("delay")
			}
		}
	}
}

// dispatch runs one incremental sync per affected table. Same-table syncs are
// serialized by the synchronizer itself.
func (l *Listener) dispatch(ctx context.Context, batch []change.Event) {
	tables, byTable := change.GroupByTable(batch)

	var g errgroup.Group
	for _, table := range tables {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, l.cfg.SyncTimeout)
			defer cancel()

			rep, err := l.syncer.Sync(sctx, synchronizer.ModeIncremental, []string{table})
			if err != nil {
				l.logger.Error("incremental sync failed",
					zap.String("table", table), zap.Int("events", len(byTable[table])), zap.Error(err))
				return nil
			}
			l.logger.Debug("incremental sync done",
				zap.String("table", table),
				zap.Int("events", len(byTable[table])),
				zap.Int("changes", rep.Changes()),
				zap.Int("failed", len(rep.Failed)))
			return nil
		})
	}
	_ = g.Wait()
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
