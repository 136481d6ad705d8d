package resdex

import "github.com/kailas-cloud/resdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrInvalidResource        = domain.ErrInvalidResource
	ErrSourceUnavailable      = domain.ErrSourceUnavailable
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrVectorSearchFailed     = domain.ErrVectorSearchFailed
	ErrRegistryUnavailable    = domain.ErrRegistryUnavailable
)
