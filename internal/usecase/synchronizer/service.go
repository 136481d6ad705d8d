// Package synchronizer reconciles the registry with the systems of record.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	"github.com/kailas-cloud/resdex/internal/metrics"
	"github.com/kailas-cloud/resdex/internal/usecase/vectorize"
)

// Mode selects the sync scope.
type Mode string

const (
	// ModeFull reconciles every configured source table.
	ModeFull Mode = "FULL"
	// ModeIncremental reconciles only the given tables.
	ModeIncremental Mode = "INCREMENTAL"
)

// ParseMode accepts "full" or "incremental" in any case.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeFull, ModeIncremental:
		return m, nil
	}
	return "", fmt.Errorf("unknown sync mode %q: %w", s, domain.ErrInvalidRequest)
}

// Sync stages, reported with item failures.
const (
	StageUpsert     = "upsert"
	StageStatus     = "status"
	StageVectorize  = "vectorize"
	StageDeactivate = "deactivate"
	StageReactivate = "reactivate"
)

// ItemFailure is one resource that could not be applied.
type ItemFailure struct {
	ResourceID string
	Stage      string
	Err        error
}

// Report summarizes one sync run. ID lists are sorted.
type Report struct {
	Mode        Mode
	Tables      []string
	Unreachable []string
	Added       []string
	Modified    []string
	Deleted     []string
	Retried     []string
	Refreshed   []string
	Failed      []ItemFailure
	StartedAt   time.Time
	Duration    time.Duration
}

// Changes counts every applied change.
func (r *Report) Changes() int {
	return len(r.Added) + len(r.Modified) + len(r.Deleted) + len(r.Retried) + len(r.Refreshed)
}

// DefaultWorkers bounds concurrent per-resource work inside one run.
const DefaultWorkers = 4

// Service diffs discovered descriptors against the registry and applies the result.
type Service struct {
	disc    Discoverer
	reg     Registry
	vec     Vectorizer
	locks   *tableLocks
	workers int
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a synchronizer. workers <= 0 uses DefaultWorkers.
func New(disc Discoverer, reg Registry, vec Vectorizer, workers int, logger *zap.Logger) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		disc:    disc,
		reg:     reg,
		vec:     vec,
		locks:   newTableLocks(),
		workers: workers,
		now:     time.Now,
		logger:  logger,
	}
}

type kind int

const (
	kindAdded kind = iota
	kindModified
	kindRetried
	kindRefreshed
	kindDeleted
)

type item struct {
	kind kind
	res  resource.Resource
	prev *resource.Resource
}

// Sync runs one reconciliation. It fails only when the registry cannot be listed
// or the context ends while waiting for a table lock; per-resource failures land in Report.Failed.
func (s *Service) Sync(ctx context.Context, mode Mode, tables []string) (Report, error) {
	start := s.now()
	report := Report{Mode: mode, StartedAt: start}

	var scope []string
	switch mode {
	case ModeFull:
		scope = s.disc.Tables()
	case ModeIncremental:
		scope = dedupSorted(tables)
	default:
		return report, fmt.Errorf("unknown sync mode %q: %w", mode, domain.ErrInvalidRequest)
	}
	report.Tables = scope
	if len(scope) == 0 {
		return report, nil
	}

	release, err := s.locks.acquire(ctx, scope)
	if err != nil {
		return report, fmt.Errorf("wait for table lock: %w", err)
	}
	defer release()

	discovered := s.disc.Discover(ctx, scope)
	for t := range discovered.Failures {
		report.Unreachable = append(report.Unreachable, t)
	}
	sort.Strings(report.Unreachable)

	registered, err := s.reg.ListByTables(ctx, scope)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(string(mode), "error").Inc()
		return report, fmt.Errorf("load registry: %w", err)
	}

	items := s.diff(mode, discovered.Resources, discovered.Reachable, registered)
	s.apply(ctx, items, &report)

	report.Duration = time.Since(start)
	s.observe(&report)

	s.logger.Info("sync finished",
		zap.String("mode", string(mode)),
		zap.Strings("tables", scope),
		zap.Strings("unreachable", report.Unreachable),
		zap.Int("added", len(report.Added)),
		zap.Int("modified", len(report.Modified)),
		zap.Int("deleted", len(report.Deleted)),
		zap.Int("retried", len(report.Retried)),
		zap.Int("refreshed", len(report.Refreshed)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (s *Service) diff(
	mode Mode, discovered []resource.Resource, reachable []string, registered []resource.Resource,
) []item {
	byID := make(map[string]*resource.Resource, len(registered))
	for i := range registered {
		byID[registered[i].ID] = &registered[i]
	}

	var items []item
	seen := make(map[string]struct{}, len(discovered))
	for _, r := range discovered {
		seen[r.ID] = struct{}{}
		prev, ok := byID[r.ID]
		switch {
		case !ok || prev.Status == resource.StatusInactive:
			items = append(items, item{kind: kindAdded, res: r, prev: prev})
		case prev.Status == resource.StatusFailed:
			items = append(items, item{kind: kindRetried, res: r, prev: prev})
		case r.ContentChanged(prev):
			items = append(items, item{kind: kindModified, res: r, prev: prev})
		case mode == ModeFull && drifted(&r, prev):
			items = append(items, item{kind: kindRefreshed, res: r, prev: prev})
		}
	}

	// Only reachable tables may lose resources.
	for _, prev := range registered {
		if _, ok := seen[prev.ID]; ok || prev.Status == resource.StatusInactive {
			continue
		}
		if !slices.Contains(reachable, prev.SourceTable) {
			continue
		}
		items = append(items, item{kind: kindDeleted, res: prev})
	}
	return items
}

// drifted reports differences the name/description rule does not look at.
func drifted(cur, prev *resource.Resource) bool {
	if !slices.Equal(cur.Capabilities, prev.Capabilities) || !slices.Equal(cur.Tags, prev.Tags) {
		return true
	}
	a, errA := cur.Metadata.Encode()
	b, errB := prev.Metadata.Encode()
	return errA != nil || errB != nil || a != b
}

func (s *Service) apply(ctx context.Context, items []item, report *Report) {
	var mu sync.Mutex
	record := func(k kind, id string, failure *ItemFailure) {
		mu.Lock()
		defer mu.Unlock()
		if failure != nil {
			report.Failed = append(report.Failed, *failure)
			return
		}
		switch k {
		case kindAdded:
			report.Added = append(report.Added, id)
		case kindModified:
			report.Modified = append(report.Modified, id)
		case kindRetried:
			report.Retried = append(report.Retried, id)
		case kindRefreshed:
			report.Refreshed = append(report.Refreshed, id)
		case kindDeleted:
			report.Deleted = append(report.Deleted, id)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, it := range items {
		g.Go(func() error {
			var failure *ItemFailure
			if it.kind == kindDeleted {
				failure = s.deactivate(gctx, &it.res)
			} else {
				failure = s.upsert(gctx, it)
			}
			record(it.kind, it.res.ID, failure)
			return nil
		})
	}
	_ = g.Wait()

	for _, ids := range [][]string{report.Added, report.Modified, report.Deleted, report.Retried, report.Refreshed} {
		sort.Strings(ids)
	}
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].ResourceID < report.Failed[j].ResourceID })
}

func (s *Service) upsert(ctx context.Context, it item) *ItemFailure {
	now := s.now()
	r := it.res
	r.Active = true
	r.Status = resource.StatusActive
	r.CreatedAt = now
	r.UpdatedAt = now
	if it.prev != nil {
		r.CreatedAt = it.prev.CreatedAt
	}

	if err := s.reg.Upsert(ctx, &r); err != nil {
		return failure(r.ID, StageUpsert, err)
	}
	if it.prev != nil && !it.prev.Active {
		if err := s.vec.Reactivate(ctx, r.ID); err != nil {
			return failure(r.ID, StageReactivate, err)
		}
	}

	res := s.vec.Vectorize(ctx, &r)
	if res.Status != vectorize.StatusFailed {
		return nil
	}
	if err := s.reg.SetStatus(ctx, r.ID, resource.StatusFailed, true, s.now()); err != nil {
		s.logger.Error("marking resource failed", zap.String("resource_id", r.ID), zap.Error(err))
	}
	return failure(r.ID, StageVectorize, res.Err())
}

func (s *Service) deactivate(ctx context.Context, r *resource.Resource) *ItemFailure {
	if err := s.reg.SetStatus(ctx, r.ID, resource.StatusInactive, false, s.now()); err != nil {
		return failure(r.ID, StageStatus, err)
	}
	if err := s.vec.Deactivate(ctx, r.ID); err != nil {
		return failure(r.ID, StageDeactivate, err)
	}
	return nil
}

func failure(id, stage string, err error) *ItemFailure {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &ItemFailure{ResourceID: id, Stage: stage, Err: fmt.Errorf("%w: %w", domain.ErrSyncItemFailed, err)}
}

func (s *Service) observe(r *Report) {
	mode := string(r.Mode)
	metrics.SyncRunsTotal.WithLabelValues(mode, "ok").Inc()
	metrics.SyncDuration.WithLabelValues(mode).Observe(r.Duration.Seconds())
	for outcome, n := range map[string]int{
		"added": len(r.Added), "modified": len(r.Modified), "deleted": len(r.Deleted),
		"retried": len(r.Retried), "refreshed": len(r.Refreshed), "failed": len(r.Failed),
	} {
		if n > 0 {
			metrics.SyncItemsTotal.WithLabelValues(mode, outcome).Add(float64(n))
		}
	}
}

func dedupSorted(tables []string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
