package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Discovery and sync metrics.
var (
	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resdex",
			Name:      "source_failures_total",
			Help:      "Source tables that could not be read during discovery",
		},
		[]string{"table"},
	)

	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resdex",
			Name:      "sync_runs_total",
			Help:      "Completed sync runs",
		},
		[]string{"mode", "status"},
	)

	SyncItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resdex",
			Name:      "sync_items_total",
			Help:      "Resources processed by sync, by outcome",
		},
		[]string{"mode", "outcome"}, // added / modified / deleted / retried / failed
	)

	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resdex",
			Name:      "sync_duration_seconds",
			Help:      "Sync run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"mode"},
	)

	VectorizeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resdex",
			Name:      "vectorize_total",
			Help:      "Vectorize calls by resulting status",
		},
		[]string{"status"},
	)
)

// Match metrics.
var (
	MatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resdex",
			Name:      "match_requests_total",
			Help:      "Match calls by outcome",
		},
		[]string{"outcome"}, // ok / empty_query / embedding_failure / search_failure
	)

	MatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "resdex",
			Name:      "match_duration_seconds",
			Help:      "Match latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	MatchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "resdex",
			Name:      "match_results",
			Help:      "Number of results returned per match call",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		},
	)
)

// Change listener metrics.
var (
	ListenerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resdex",
			Name:      "listener_events_total",
			Help:      "Change notifications by disposition",
		},
		[]string{"result"}, // accepted / duplicate / malformed
	)

	ListenerFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resdex",
			Name:      "listener_flushes_total",
			Help:      "Batch flushes by trigger",
		},
		[]string{"trigger"}, // size / delay / drain
	)

	ListenerReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resdex",
			Name:      "listener_reconnects_total",
			Help:      "Subscription reconnect attempts",
		},
	)
)

var registerEngine sync.Once

// RegisterEngineMetrics registers discovery, sync, match and listener metrics.
// Safe to call more than once.
func RegisterEngineMetrics() {
	registerEngine.Do(func() {
		prometheus.MustRegister(
			SourceFailuresTotal, SyncRunsTotal, SyncItemsTotal, SyncDuration, VectorizeTotal,
			MatchRequestsTotal, MatchDuration, MatchResults,
			ListenerEventsTotal, ListenerFlushesTotal, ListenerReconnectsTotal,
		)
	})
}
