package synchronizer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	"github.com/kailas-cloud/resdex/internal/usecase/discovery"
	"github.com/kailas-cloud/resdex/internal/usecase/vectorize"
)

// --- Mocks ---

type fakeDiscoverer struct {
	mu       sync.Mutex
	rows     map[string][]resource.Resource // by table
	down     map[string]bool
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeDiscoverer() *fakeDiscoverer {
	return &fakeDiscoverer{rows: make(map[string][]resource.Resource), down: make(map[string]bool)}
}

func (f *fakeDiscoverer) set(table string, rows ...resource.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[table] = rows
}

func (f *fakeDiscoverer) Tables() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.rows))
	for t := range f.rows {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (f *fakeDiscoverer) Discover(_ context.Context, tables []string) discovery.Result {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	res := discovery.Result{Failures: make(map[string]error)}
	for _, t := range tables {
		if f.down[t] {
			res.Failures[t] = domain.NewSourceError(t, errors.New("connection refused"))
			continue
		}
		res.Reachable = append(res.Reachable, t)
		res.Resources = append(res.Resources, f.rows[t]...)
	}
	sort.Slice(res.Resources, func(i, j int) bool { return res.Resources[i].ID < res.Resources[j].ID })
	return res
}

type memRegistry struct {
	mu        sync.Mutex
	items     map[string]resource.Resource
	listErr   error
	upsertErr map[string]error
}

func newMemRegistry() *memRegistry {
	return &memRegistry{items: make(map[string]resource.Resource), upsertErr: make(map[string]error)}
}

func (m *memRegistry) ListByTables(_ context.Context, tables []string) ([]resource.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []resource.Resource
	for _, r := range m.items {
		for _, t := range tables {
			if r.SourceTable == t {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (m *memRegistry) Upsert(_ context.Context, r *resource.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.upsertErr[r.ID]; err != nil {
		return err
	}
	m.items[r.ID] = *r
	return nil
}

func (m *memRegistry) SetStatus(_ context.Context, id string, st resource.Status, active bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status, r.Active, r.UpdatedAt = st, active, at
	m.items[id] = r
	return nil
}

func (m *memRegistry) get(id string) resource.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

type fakeVectorizer struct {
	mu          sync.Mutex
	vectorized  []string
	deactivated []string
	reactivated []string
	failing     map[string]bool
}

func newFakeVectorizer() *fakeVectorizer {
	return &fakeVectorizer{failing: make(map[string]bool)}
}

func (f *fakeVectorizer) Vectorize(_ context.Context, r *resource.Resource) vectorize.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorized = append(f.vectorized, r.ID)
	if f.failing[r.ID] {
		return vectorize.Result{ResourceID: r.ID, Status: vectorize.StatusFailed}
	}
	return vectorize.Result{ResourceID: r.ID, Status: vectorize.StatusSuccess}
}

func (f *fakeVectorizer) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeVectorizer) Reactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactivated = append(f.reactivated, id)
	return nil
}
