package discovery

import (
	"context"

	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

// Source reads the active rows of one system-of-record table.
type Source interface {
	Table() string
	Fetch(ctx context.Context) ([]resource.Resource, error)
}
