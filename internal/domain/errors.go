package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidResource signals a descriptor that failed boundary validation.
	ErrInvalidResource = errors.New("invalid resource")
	// ErrSourceUnavailable signals an unreachable system of record.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure or timeout.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorSearchFailed signals a nearest-neighbor backend error or timeout.
	ErrVectorSearchFailed = errors.New("vector search failed")
	// ErrSyncItemFailed signals that a single resource could not be applied during sync.
	ErrSyncItemFailed = errors.New("sync item failed")
	// ErrNotificationMalformed signals an undecodable change notification.
	ErrNotificationMalformed = errors.New("notification malformed")
	// ErrListenerConnectionLost signals a dropped notification subscription.
	ErrListenerConnectionLost = errors.New("listener connection lost")
	// ErrRegistryUnavailable signals that the resource registry cannot be read.
	ErrRegistryUnavailable = errors.New("registry unavailable")
	// ErrNoHandler signals a match result whose type has no execution handler.
	ErrNoHandler = errors.New("no handler for resource type")
	// ErrInvalidRequest signals bad caller input.
	ErrInvalidRequest = errors.New("invalid request")
)

// SourceError ties a failure to the source table that produced it.
type SourceError struct {
	Table string
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Table, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError wraps err as ErrSourceUnavailable for the given table.
func NewSourceError(table string, err error) error {
	return &SourceError{Table: table, Err: fmt.Errorf("%w: %w", ErrSourceUnavailable, err)}
}
