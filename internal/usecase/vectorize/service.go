// Package vectorize keeps the stored embeddings of a resource in step with its content.
package vectorize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
	"github.com/kailas-cloud/resdex/internal/metrics"
)

// DefaultEmbedTimeout bounds a single embedding call.
const DefaultEmbedTimeout = 10 * time.Second

// Status summarizes one Vectorize call.
type Status string

const (
	// StatusSuccess means every planned vector is current.
	StatusSuccess Status = "SUCCESS"
	// StatusPartial means some secondary vectors failed but COMPOSITE is present.
	StatusPartial Status = "PARTIAL"
	// StatusFailed means the COMPOSITE vector could not be produced.
	StatusFailed Status = "FAILED"
	// StatusSkipped means nothing changed and no embedding call was made.
	StatusSkipped Status = "SKIPPED"
)

// Result reports what happened per vector type.
type Result struct {
	ResourceID string
	Status     Status
	Vectorized []domvec.Type
	Skipped    []domvec.Type
	Removed    []domvec.Type
	Failed     map[domvec.Type]error
}

// Err returns the COMPOSITE failure, if any.
func (r *Result) Err() error {
	return r.Failed[domvec.TypeComposite]
}

// Config tunes the vectorizer.
type Config struct {
	Plan         domvec.Plan
	EmbedTimeout time.Duration
	Dimensions   int // 0 disables the length check
}

// Service embeds changed snapshots and persists them.
type Service struct {
	embed  Embedder
	store  VectorStore
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// New creates a vectorizer.
func New(embed Embedder, store VectorStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.Plan == nil {
		cfg.Plan = domvec.DefaultPlan()
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	return &Service{embed: embed, store: store, cfg: cfg, now: time.Now, logger: logger}
}

// Vectorize brings every planned vector of r up to date.
// A vector whose stored content hash matches the current snapshot is left alone.
// Failures are contained per vector type.
func (s *Service) Vectorize(ctx context.Context, r *resource.Resource) Result {
	res := Result{ResourceID: r.ID, Failed: make(map[domvec.Type]error)}
	types := s.cfg.Plan.TypesFor(r.Type)

	stored, err := s.store.ContentHashes(ctx, r.ID, types)
	if err != nil {
		s.logger.Warn("reading stored content hashes failed, re-embedding",
			zap.String("resource_id", r.ID), zap.Error(err))
		stored = nil
	}

	for _, vt := range types {
		snapshot := domvec.Snapshot(r, vt)
		if snapshot == "" && vt != domvec.TypeComposite {
			if _, ok := stored[vt]; ok {
				s.remove(ctx, r.ID, vt, &res)
			}
			continue
		}
		hash := domvec.Hash(snapshot)
		if stored[vt] == hash {
			res.Skipped = append(res.Skipped, vt)
			continue
		}
		if err := s.generate(ctx, r, vt, snapshot, hash); err != nil {
			s.logger.Warn("vector generation failed",
				zap.String("resource_id", r.ID),
				zap.String("vector_type", string(vt)),
				zap.Error(err))
			res.Failed[vt] = err
			continue
		}
		res.Vectorized = append(res.Vectorized, vt)
	}

	res.Status = status(&res)
	metrics.VectorizeTotal.WithLabelValues(string(res.Status)).Inc()
	return res
}

func (s *Service) generate(ctx context.Context, r *resource.Resource, vt domvec.Type, snapshot, hash string) error {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	emb, err := s.embed.Embed(ectx, snapshot)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingProviderError) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	if s.cfg.Dimensions > 0 && len(emb.Embedding) != s.cfg.Dimensions {
		return fmt.Errorf("%w: got %d dimensions, want %d",
			domain.ErrEmbeddingProviderError, len(emb.Embedding), s.cfg.Dimensions)
	}

	v := &domvec.Vector{
		ResourceID:      r.ID,
		Type:            vt,
		Embedding:       emb.Embedding,
		ContentSnapshot: snapshot,
		ContentHash:     hash,
		CreatedAt:       s.now(),
	}
	if err := s.store.Save(ctx, v, r.Type, r.Active); err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// remove drops a secondary vector whose source text is now empty.
func (s *Service) remove(ctx context.Context, resourceID string, vt domvec.Type, res *Result) {
	if err := s.store.Remove(ctx, resourceID, vt); err != nil {
		s.logger.Warn("removing stale vector failed",
			zap.String("resource_id", resourceID),
			zap.String("vector_type", string(vt)),
			zap.Error(err))
		res.Failed[vt] = fmt.Errorf("remove vector: %w", err)
		return
	}
	res.Removed = append(res.Removed, vt)
}

func status(r *Result) Status {
	switch {
	case r.Failed[domvec.TypeComposite] != nil:
		return StatusFailed
	case len(r.Failed) > 0:
		return StatusPartial
	case len(r.Vectorized) == 0 && len(r.Removed) == 0:
		return StatusSkipped
	default:
		return StatusSuccess
	}
}

// Deactivate hides every vector of a resource from nearest-neighbor search.
func (s *Service) Deactivate(ctx context.Context, resourceID string) error {
	if err := s.store.SetActive(ctx, resourceID, false); err != nil {
		return fmt.Errorf("deactivate vectors: %w", err)
	}
	return nil
}

// Reactivate makes the vectors of a returning resource searchable again.
func (s *Service) Reactivate(ctx context.Context, resourceID string) error {
	if err := s.store.SetActive(ctx, resourceID, true); err != nil {
		return fmt.Errorf("reactivate vectors: %w", err)
	}
	return nil
}
