package usage

import (
	"context"

	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domusage "github.com/kailas-cloud/resdex/internal/domain/usage"
)

// Registry owns the per-resource outcome counters.
type Registry interface {
	Get(ctx context.Context, id string) (resource.Resource, error)
	ApplyOutcome(ctx context.Context, id string, succeeded bool, responseTimeMs int64) error
}

// Counters keeps the rolling daily buckets.
type Counters interface {
	Incr(ctx context.Context, c domusage.Counter, ids ...string) error
	Window(ctx context.Context, ids []string) (map[string]domusage.Totals, error)
}
