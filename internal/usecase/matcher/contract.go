package matcher

import (
	"context"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorSearcher runs nearest-neighbor search over COMPOSITE vectors of active resources.
type VectorSearcher interface {
	SearchComposite(ctx context.Context, embedding []float32, k int, types []resource.Type) ([]domvec.Hit, error)
}

// ResourceReader loads candidate descriptors.
type ResourceReader interface {
	GetMulti(ctx context.Context, ids []string) (map[string]resource.Resource, error)
}

// UsageSignals serves the usage preference signal and counts returned results.
type UsageSignals interface {
	Preferences(ctx context.Context, ids []string) map[string]float64
	RecordMatches(ctx context.Context, ids []string) error
}

// HistoryWriter appends match history.
type HistoryWriter interface {
	Append(ctx context.Context, h *match.History) error
}
