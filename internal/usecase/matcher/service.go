// Package matcher ranks resources against a free-text request.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/metrics"
)

// Config holds the per-stage timeouts.
type Config struct {
	EmbedTimeout   time.Duration
	SearchTimeout  time.Duration
	HistoryTimeout time.Duration
}

// Defaults.
const (
	DefaultEmbedTimeout   = 5 * time.Second
	DefaultSearchTimeout  = 2 * time.Second
	DefaultHistoryTimeout = 2 * time.Second
)

// Service is safe for concurrent use; it holds no mutable state.
type Service struct {
	embed   Embedder
	search  VectorSearcher
	reader  ResourceReader
	usage   UsageSignals
	history HistoryWriter
	cfg     Config
	now     func() time.Time
	newID   func() string
	logger  *zap.Logger
}

// New creates a matcher. history may be nil when no history store is configured.
func New(
	embed Embedder, search VectorSearcher, reader ResourceReader,
	usage UsageSignals, history HistoryWriter, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = DefaultHistoryTimeout
	}
	return &Service{
		embed:   embed,
		search:  search,
		reader:  reader,
		usage:   usage,
		history: history,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger,
	}
}

// Match returns results ordered by confidence, best first.
// Query-side problems (blank query, embedding or search failure) yield an empty list, not an error.
// Errors are returned only for invalid requests and an unreadable registry.
func (s *Service) Match(ctx context.Context, req match.Request) ([]match.Result, error) {
	start := s.now()
	defer func() { metrics.MatchDuration.Observe(time.Since(start).Seconds()) }()

	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	if req.Query == "" {
		metrics.MatchRequestsTotal.WithLabelValues("empty_query").Inc()
		return []match.Result{}, nil
	}

	results, outcome, err := s.rank(ctx, req)
	if err != nil {
		metrics.MatchRequestsTotal.WithLabelValues("registry_failure").Inc()
		return nil, err
	}
	metrics.MatchRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.MatchResults.Observe(float64(len(results)))

	s.record(ctx, req.Query, results, time.Since(start))
	return results, nil
}

func (s *Service) rank(ctx context.Context, req match.Request) ([]match.Result, string, error) {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	emb, err := s.embed.Embed(ectx, req.Query)
	cancel()
	if err != nil {
		s.logger.Warn("query embedding failed",
			zap.Error(fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)))
		return []match.Result{}, "embedding_failure", nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	hits, err := s.search.SearchComposite(sctx, emb.Embedding, req.CandidateK(), req.ResourceTypes)
	cancel()
	if err != nil {
		s.logger.Warn("vector search failed", zap.Error(err))
		return []match.Result{}, "search_failure", nil
	}
	if len(hits) == 0 {
		return []match.Result{}, "ok", nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ResourceID
	}
	resources, err := s.reader.GetMulti(ctx, ids)
	if err != nil {
		return nil, "", fmt.Errorf("load candidates: %w: %w", domain.ErrRegistryUnavailable, err)
	}
	prefs := s.usage.Preferences(ctx, ids)
	tokens := match.Tokenize(req.Query)

	candidates := make([]match.Result, 0, len(hits))
	for _, h := range hits {
		r, ok := resources[h.ResourceID]
		if !ok || !r.IsSearchable() {
			continue
		}
		sig := match.Signals{
			Similarity:       h.Similarity,
			UsagePreference:  prefs[h.ResourceID],
			Performance:      match.Performance(r.Stats),
			ContextRelevance: match.ContextRelevance(tokens, &r),
		}
		candidates = append(candidates, match.Result{Resource: r, Signals: sig, Confidence: match.Confidence(sig)})
	}

	// hits arrive by similarity; a stable sort keeps that order among equal confidences
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	results := candidates[:0]
	for _, c := range candidates {
		if c.Confidence < req.MinConfidence {
			continue
		}
		results = append(results, c)
		if len(results) == req.TopK {
			break
		}
	}
	for i := range results {
		results[i].Reasoning = match.Reasoning(&results[i])
	}
	return results, "ok", nil
}

// record persists history and bumps the match counters. Failures are logged only.
func (s *Service) record(ctx context.Context, query string, results []match.Result, elapsed time.Duration) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HistoryTimeout)
	defer cancel()

	h := match.NewHistory(s.newID(), query, results, elapsed, s.now())
	if s.history != nil {
		if err := s.history.Append(rctx, &h); err != nil {
			s.logger.Error("appending match history failed", zap.String("history_id", h.ID), zap.Error(err))
		}
	}
	if err := s.usage.RecordMatches(rctx, h.MatchedResourceIDs); err != nil {
		s.logger.Error("recording match counters failed", zap.Error(err))
	}
}
