package vectorize

import (
	"context"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorStore persists vectors keyed by (resource_id, vector_type).
type VectorStore interface {
	ContentHashes(ctx context.Context, resourceID string, types []domvec.Type) (map[domvec.Type]string, error)
	Save(ctx context.Context, v *domvec.Vector, resourceType resource.Type, active bool) error
	SetActive(ctx context.Context, resourceID string, active bool) error
	Remove(ctx context.Context, resourceID string, types ...domvec.Type) error
}
