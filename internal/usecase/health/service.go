package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; matching may still work.
	Degraded Status = "degraded"
	// Unhealthy indicates the registry is down and nothing can be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys. Sources appear as "source:<table>".
const (
	ComponentRegistry  = "registry"
	ComponentEmbedding = "embedding"
	sourcePrefix       = "source:"
)

// DefaultCheckTimeout bounds each individual probe.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	registry  Pinger
	embedding EmbeddingChecker
	sources   []SourceChecker
	timeout   time.Duration
}

// New creates a Service. embedding can be nil.
func New(registry Pinger, embedding EmbeddingChecker, sources ...SourceChecker) *Service {
	return &Service{registry: registry, embedding: embedding, sources: sources, timeout: DefaultCheckTimeout}
}

// Check probes all components concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult)
	)
	probe := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if err := fn(pctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}()
	}

	probe(ComponentRegistry, s.registry.Ping)
	if s.embedding != nil {
		probe(ComponentEmbedding, s.embedding.HealthCheck)
	}
	for _, src := range s.sources {
		probe(sourcePrefix+src.Table(), src.Ping)
	}
	wg.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentRegistry] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
