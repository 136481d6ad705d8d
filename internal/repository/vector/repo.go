// Package vector persists resource embeddings as HASH documents under an HNSW index.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/resdex/internal/db"
	"github.com/kailas-cloud/resdex/internal/db/filter"
	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
)

var (
	keyPrefix = domain.KeyPrefix + "vector:"
	indexName = domain.KeyPrefix + "vectors:idx"
)

const (
	fieldResourceID   = "resource_id"
	fieldVectorType   = "vector_type"
	fieldResourceType = "resource_type"
	fieldActive       = "active"
	fieldHash         = "content_hash"
	fieldSnapshot     = "content_snapshot"
	fieldCreatedAt    = "created_at"
	fieldVector       = "__vector"
	vectorAlias       = "vector"
)

type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

// IndexConfig shapes the vector index.
type IndexConfig struct {
	Dim         int
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
}

// Repo stores vectors keyed by (resource_id, vector_type).
type Repo struct {
	store store
}

// New creates a vector repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func key(resourceID string, t domvec.Type) string {
	return keyPrefix + resourceID + ":" + string(t)
}

// EnsureIndex creates the KNN index if it is missing.
func (r *Repo) EnsureIndex(ctx context.Context, cfg IndexConfig) error {
	b := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(fieldResourceID, fieldVectorType, fieldResourceType, fieldActive)
	switch cfg.Algorithm {
	case db.VectorFlat:
		b = b.VectorFlat(fieldVector, vectorAlias, cfg.Dim, db.DistanceCosine, 0)
	default:
		b = b.VectorHNSW(fieldVector, vectorAlias, cfg.Dim, db.DistanceCosine, cfg.M, cfg.EFConstruct)
	}
	def, err := b.Build()
	if err != nil {
		return fmt.Errorf("vector index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// ContentHashes returns the stored content hash per vector type; absent types are omitted.
func (r *Repo) ContentHashes(ctx context.Context, resourceID string, types []domvec.Type) (map[domvec.Type]string, error) {
	keys := make([]string, len(types))
	for i, t := range types {
		keys[i] = key(resourceID, t)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load vector hashes %s: %w", resourceID, err)
	}

	out := make(map[domvec.Type]string, len(types))
	for i, m := range hashes {
		if h := m[fieldHash]; h != "" {
			out[types[i]] = h
		}
	}
	return out, nil
}

// Save upserts one vector. resourceType and active feed the KNN pre-filter.
func (r *Repo) Save(ctx context.Context, v *domvec.Vector, resourceType resource.Type, active bool) error {
	fields := map[string]string{
		fieldResourceID:   v.ResourceID,
		fieldVectorType:   string(v.Type),
		fieldResourceType: string(resourceType),
		fieldActive:       activeFlag(active),
		fieldHash:         v.ContentHash,
		fieldSnapshot:     v.ContentSnapshot,
		fieldCreatedAt:    strconv.FormatInt(v.CreatedAt.UnixMilli(), 10),
		fieldVector:       string(db.EncodeVector(v.Embedding)),
	}
	if err := r.store.HSet(ctx, key(v.ResourceID, v.Type), fields); err != nil {
		return fmt.Errorf("save vector %s/%s: %w", v.ResourceID, v.Type, err)
	}
	return nil
}

// Remove deletes the given vector types of a resource. Missing vectors are ignored.
func (r *Repo) Remove(ctx context.Context, resourceID string, types ...domvec.Type) error {
	if len(types) == 0 {
		return nil
	}
	keys := make([]string, len(types))
	for i, t := range types {
		keys[i] = key(resourceID, t)
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("remove vectors %s: %w", resourceID, err)
	}
	return nil
}

// SetActive flips the active flag on every stored vector of a resource.
func (r *Repo) SetActive(ctx context.Context, resourceID string, active bool) error {
	res, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName:    indexName,
		Filter:       filter.New().Must(fieldResourceID, resourceID),
		Limit:        16,
		ReturnFields: []string{fieldVectorType},
	})
	if err != nil {
		return fmt.Errorf("list vectors %s: %w", resourceID, err)
	}
	if len(res.Entries) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(res.Entries))
	for i, e := range res.Entries {
		items[i] = db.HashSetItem{Key: e.Key, Fields: map[string]string{fieldActive: activeFlag(active)}}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("set vectors active=%v %s: %w", active, resourceID, err)
	}
	return nil
}

// SearchComposite runs KNN over active COMPOSITE vectors, optionally restricted to resource types.
func (r *Repo) SearchComposite(ctx context.Context, embedding []float32, k int, types []resource.Type) ([]domvec.Hit, error) {
	f := filter.New().
		Must(fieldVectorType, string(domvec.TypeComposite)).
		Must(fieldActive, activeFlag(true))
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		f = f.Must(fieldResourceType, names...)
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		VectorField:  vectorAlias,
		Filter:       f,
		Vector:       embedding,
		K:            k,
		ReturnFields: []string{fieldResourceID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorSearchFailed, err)
	}

	hits := make([]domvec.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		if id := e.Fields[fieldResourceID]; id != "" {
			hits = append(hits, domvec.Hit{ResourceID: id, Similarity: e.Score})
		}
	}
	return hits, nil
}

func activeFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
