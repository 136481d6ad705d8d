package synchronizer

import (
	"context"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain/resource"
	"github.com/kailas-cloud/resdex/internal/usecase/discovery"
	"github.com/kailas-cloud/resdex/internal/usecase/vectorize"
)

// Discoverer produces the current descriptors of the systems of record.
type Discoverer interface {
	Tables() []string
	Discover(ctx context.Context, tables []string) discovery.Result
}

// Registry is the persisted resource set.
type Registry interface {
	ListByTables(ctx context.Context, tables []string) ([]resource.Resource, error)
	Upsert(ctx context.Context, r *resource.Resource) error
	SetStatus(ctx context.Context, id string, status resource.Status, active bool, at time.Time) error
}

// Vectorizer maintains the embeddings of a resource.
type Vectorizer interface {
	Vectorize(ctx context.Context, r *resource.Resource) vectorize.Result
	Deactivate(ctx context.Context, resourceID string) error
	Reactivate(ctx context.Context, resourceID string) error
}
