package listener

import (
	"context"

	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

// Subscriber delivers raw notification payloads to handle until ctx ends.
// It returns nil after ctx is cancelled and an error when the connection drops.
type Subscriber interface {
	Subscribe(ctx context.Context, handle func(payload []byte)) error
}

// Syncer runs a reconciliation for the given tables.
type Syncer interface {
	Sync(ctx context.Context, mode synchronizer.Mode, tables []string) (synchronizer.Report, error)
}
