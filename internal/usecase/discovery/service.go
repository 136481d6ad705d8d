// Package discovery turns system-of-record rows into canonical resource descriptors.
package discovery

import (
	"context"
	"slices"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/resdex/internal/domain/resource"
	"github.com/kailas-cloud/resdex/internal/metrics"
)

const maxParallelSources = 4

// Result is the outcome of one discovery pass.
// Reachable lists the tables that were read successfully; only those may produce deletions.
type Result struct {
	Resources []resource.Resource
	Reachable []string
	Failures  map[string]error
}

// Service fans out to the configured sources.
type Service struct {
	sources map[string]Source
	tables  []string
	logger  *zap.Logger
}

// New creates a discovery service over the given sources.
func New(sources []Source, logger *zap.Logger) *Service {
	s := &Service{sources: make(map[string]Source, len(sources)), logger: logger}
	for _, src := range sources {
		s.sources[src.Table()] = src
		s.tables = append(s.tables, src.Table())
	}
	sort.Strings(s.tables)
	return s
}

// Tables returns the configured source tables, sorted.
func (s *Service) Tables() []string {
	return slices.Clone(s.tables)
}

// DiscoverAll reads every configured source.
func (s *Service) DiscoverAll(ctx context.Context) []resource.Resource {
	return s.Discover(ctx, nil).Resources
}

// Discover reads the given tables (nil means all). It never fails as a whole:
// an unreachable source is logged and reported in Failures.
// Tables that are not configured are ignored.
func (s *Service) Discover(ctx context.Context, tables []string) Result {
	scope := s.scope(tables)

	fetched := make([][]resource.Resource, len(scope))
	errs := make([]error, len(scope))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSources)
	for i, table := range scope {
		g.Go(func() error {
			fetched[i], errs[i] = s.sources[table].Fetch(gctx)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Failures: make(map[string]error)}
	for i, table := range scope {
		if errs[i] != nil {
			s.logger.Warn("source unavailable", zap.String("table", table), zap.Error(errs[i]))
			metrics.SourceFailuresTotal.WithLabelValues(table).Inc()
			res.Failures[table] = errs[i]
			continue
		}
		res.Reachable = append(res.Reachable, table)
		res.Resources = append(res.Resources, fetched[i]...)
	}

	sort.Slice(res.Resources, func(i, j int) bool { return res.Resources[i].ID < res.Resources[j].ID })
	return res
}

func (s *Service) scope(tables []string) []string {
	if tables == nil {
		return s.tables
	}
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if _, ok := s.sources[t]; !ok {
			s.logger.Debug("ignoring unconfigured source table", zap.String("table", t))
			continue
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
