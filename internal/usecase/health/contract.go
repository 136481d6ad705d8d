package health

import "context"

// Pinger checks availability of a store or source.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// SourceChecker is a source table reader that can be pinged.
type SourceChecker interface {
	Table() string
	Ping(ctx context.Context) error
}
