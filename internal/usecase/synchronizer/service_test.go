package synchronizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
	"github.com/kailas-cloud/resdex/internal/usecase/vectorize"
)

const (
	apis  = "api_definitions"
	tools = "tool_definitions"
)

func apiRes(t *testing.T, id, name, desc string) resource.Resource {
	t.Helper()
	r, err := resource.New(resource.TypeAPI, apis, id, name, desc, nil, nil,
		resource.Metadata{API: &resource.APIMetadata{BaseURL: "https://api.example/" + id}})
	if err != nil {
		t.Fatalf("build resource: %v", err)
	}
	return r
}

func toolRes(t *testing.T, id, name string) resource.Resource {
	t.Helper()
	r, err := resource.New(resource.TypeTool, tools, id, name, "", nil, nil, resource.Metadata{})
	if err != nil {
		t.Fatalf("build resource: %v", err)
	}
	return r
}

func setup() (*fakeDiscoverer, *memRegistry, *fakeVectorizer, *Service) {
	disc, reg, vec := newFakeDiscoverer(), newMemRegistry(), newFakeVectorizer()
	return disc, reg, vec, New(disc, reg, vec, 2, zap.NewNop())
}

func TestSync_FullAddsThenIdempotent(t *testing.T) {
	disc, reg, vec, svc := setup()
	disc.set(apis, apiRes(t, "1", "Weather", "forecast"), apiRes(t, "2", "Maps", "geocoding"))
	disc.set(tools, toolRes(t, "1", "Notifier"))

	first, err := svc.Sync(context.Background(), ModeFull, nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(first.Added) != 3 || len(first.Failed) != 0 {
		t.Fatalf("expected 3 added, got %+v", first)
	}
	if first.Added[0] != "api:api_definitions:1" {
		t.Errorf("expected sorted ids, got %v", first.Added)
	}
	if got := reg.get("api:api_definitions:1"); got.Status != resource.StatusActive || !got.Active || got.CreatedAt.IsZero() {
		t.Errorf("unexpected stored resource %+v", got)
	}

	second, err := svc.Sync(context.Background(), ModeFull, nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if second.Changes() != 0 || len(second.Failed) != 0 {
		t.Errorf("second run must be a no-op, got %+v", second)
	}
	if len(vec.vectorized) != 3 {
		t.Errorf("expected no vectorize calls on the second run, got %d total", len(vec.vectorized))
	}
}

func TestSync_ModifiedAndDeleted(t *testing.T) {
	disc, reg, vec, svc := setup()
	disc.set(apis, apiRes(t, "1", "Orders", "order api"), apiRes(t, "2", "Legacy", "old"))
	if _, err := svc.Sync(context.Background(), ModeFull, nil); err != nil {
		t.Fatal(err)
	}
	created := reg.get("api:api_definitions:1").CreatedAt

	disc.set(apis, apiRes(t, "1", "Orders v2", "order api"))
	rep, err := svc.Sync(context.Background(), ModeIncremental, []string{apis})
	if err != nil {
		t.Fatal(err)
	}

	if len(rep.Modified) != 1 || rep.Modified[0] != "api:api_definitions:1" {
		t.Errorf("expected Orders modified, got %v", rep.Modified)
	}
	if len(rep.Deleted) != 1 || rep.Deleted[0] != "api:api_definitions:2" {
		t.Errorf("expected Legacy deleted, got %v", rep.Deleted)
	}
	legacy := reg.get("api:api_definitions:2")
	if legacy.Status != resource.StatusInactive || legacy.Active {
		t.Errorf("deleted resource must be INACTIVE, got %+v", legacy)
	}
	if len(vec.deactivated) != 1 {
		t.Errorf("expected vectors deactivated, got %v", vec.deactivated)
	}
	if got := reg.get("api:api_definitions:1"); got.Name != "Orders v2" || !got.CreatedAt.Equal(created) {
		t.Errorf("modified resource must keep created_at, got %+v", got)
	}
}

func TestSync_OtherFieldChangeNotModified(t *testing.T) {
	disc, _, _, svc := setup()
	disc.set(apis, apiRes(t, "1", "Orders", "order api"))
	if _, err := svc.Sync(context.Background(), ModeFull, nil); err != nil {
		t.Fatal(err)
	}

	changed := apiRes(t, "1", "Orders", "order api")
	changed.Metadata.API.BaseURL = "https://new.example"
	disc.set(apis, changed)

	inc, _ := svc.Sync(context.Background(), ModeIncremental, []string{apis})
	if inc.Changes() != 0 {
		t.Errorf("incremental sync applies the name/description rule only, got %+v", inc)
	}
	full, _ := svc.Sync(context.Background(), ModeFull, nil)
	if len(full.Modified) != 0 || len(full.Refreshed) != 1 {
		t.Errorf("full sync must refresh drifted fields, got %+v", full)
	}
}

func TestSync_ReactivatesReturningResource(t *testing.T) {
	disc, reg, vec, svc := setup()
	disc.set(apis, apiRes(t, "1", "Orders", "order api"))
	_, _ = svc.Sync(context.Background(), ModeFull, nil)
	disc.set(apis)
	_, _ = svc.Sync(context.Background(), ModeFull, nil)

	disc.set(apis, apiRes(t, "1", "Orders", "order api"))
	rep, _ := svc.Sync(context.Background(), ModeFull, nil)

	if len(rep.Added) != 1 {
		t.Fatalf("expected re-add, got %+v", rep)
	}
	if got := reg.get("api:api_definitions:1"); got.Status != resource.StatusActive || !got.Active {
		t.Errorf("expected ACTIVE again, got %+v", got)
	}
	if len(vec.reactivated) != 1 {
		t.Errorf("expected vectors reactivated, got %v", vec.reactivated)
	}
}

func TestSync_UnreachableSourceNeverDeletes(t *testing.T) {
	disc, reg, vec, svc := setup()
	disc.set(apis, apiRes(t, "1", "Orders", "order api"))
	disc.set(tools, toolRes(t, "1", "Notifier"))
	_, _ = svc.Sync(context.Background(), ModeFull, nil)

	disc.down[tools] = true
	rep, err := svc.Sync(context.Background(), ModeFull, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Deleted) != 0 || len(vec.deactivated) != 0 {
		t.Errorf("unreachable source must not delete, got %+v", rep)
	}
	if len(rep.Unreachable) != 1 || rep.Unreachable[0] != tools {
		t.Errorf("unexpected unreachable %v", rep.Unreachable)
	}
	if got := reg.get("tool:tool_definitions:1"); got.Status != resource.StatusActive {
		t.Errorf("tool must stay ACTIVE, got %s", got.Status)
	}
}

func TestSync_FailedVectorizationRetried(t *testing.T) {
	disc, reg, vec, svc := setup()
	disc.set(apis, apiRes(t, "1", "Orders", "order api"))
	vec.failing["api:api_definitions:1"] = true

	rep, _ := svc.Sync(context.Background(), ModeFull, nil)
	if len(rep.Failed) != 1 || rep.Failed[0].Stage != StageVectorize {
		t.Fatalf("expected vectorize failure, got %+v", rep.Failed)
	}
	if !errors.Is(rep.Failed[0].Err, domain.ErrSyncItemFailed) {
		t.Errorf("failure must wrap ErrSyncItemFailed: %v", rep.Failed[0].Err)
	}
	if got := reg.get("api:api_definitions:1"); got.Status != resource.StatusFailed {
		t.Errorf("expected FAILED status, got %s", got.Status)
	}

	delete(vec.failing, "api:api_definitions:1")
	rep, _ = svc.Sync(context.Background(), ModeFull, nil)
	if len(rep.Retried) != 1 || len(rep.Failed) != 0 {
		t.Errorf("expected retry to succeed, got %+v", rep)
	}
	if got := reg.get("api:api_definitions:1"); got.Status != resource.StatusActive {
		t.Errorf("expected ACTIVE after retry, got %s", got.Status)
	}
}

func TestSync_ItemFailureIsolated(t *testing.T) {
	disc, reg, _, svc := setup()
	disc.set(apis, apiRes(t, "1", "Orders", "order api"), apiRes(t, "2", "Maps", "geo"))
	reg.upsertErr["api:api_definitions:1"] = errors.New("write refused")

	rep, err := svc.Sync(context.Background(), ModeFull, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Added) != 1 || rep.Added[0] != "api:api_definitions:2" {
		t.Errorf("healthy item must be applied, got %v", rep.Added)
	}
	if len(rep.Failed) != 1 || rep.Failed[0].Stage != StageUpsert {
		t.Errorf("expected upsert failure, got %+v", rep.Failed)
	}
}

func TestSync_RegistryUnavailableIsHardError(t *testing.T) {
	disc, reg, _, svc := setup()
	disc.set(apis, apiRes(t, "1", "Orders", "order api"))
	reg.listErr = domain.ErrRegistryUnavailable

	if _, err := svc.Sync(context.Background(), ModeFull, nil); !errors.Is(err, domain.ErrRegistryUnavailable) {
		t.Errorf("expected ErrRegistryUnavailable, got %v", err)
	}
}

func TestSync_EmptyIncrementalScope(t *testing.T) {
	disc, _, _, svc := setup()
	disc.set(apis, apiRes(t, "1", "Orders", "order api"))

	rep, err := svc.Sync(context.Background(), ModeIncremental, nil)
	if err != nil || rep.Changes() != 0 || len(rep.Tables) != 0 {
		t.Errorf("expected empty report, got %+v %v", rep, err)
	}
}

func TestSync_SameTableSerialized(t *testing.T) {
	disc, _, _, svc := setup()
	disc.set(apis, apiRes(t, "1", "Orders", "order api"))
	disc.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Sync(context.Background(), ModeIncremental, []string{apis})
		}()
	}
	wg.Wait()

	if got := disc.maxSeen.Load(); got != 1 {
		t.Errorf("syncs for one table overlapped: max in flight %d", got)
	}
}

func TestSync_LockWaitHonorsContext(t *testing.T) {
	_, _, _, svc := setup()
	release, err := svc.locks.acquire(context.Background(), []string{apis})
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := svc.Sync(ctx, ModeIncremental, []string{apis}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" full "); err != nil || m != ModeFull {
		t.Errorf("got %s %v", m, err)
	}
	if _, err := ParseMode("partial"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

// --- Scenario with the real vectorizer ---

type countingEmbedder struct {
	mu    sync.Mutex
	texts []string
}

func (c *countingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
}

type hashStore struct {
	mu     sync.Mutex
	hashes map[string]string
}

func (h *hashStore) ContentHashes(_ context.Context, id string, types []domvec.Type) (map[domvec.Type]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[domvec.Type]string)
	for _, t := range types {
		if v, ok := h.hashes[id+"/"+string(t)]; ok {
			out[t] = v
		}
	}
	return out, nil
}

func (h *hashStore) Save(_ context.Context, v *domvec.Vector, _ resource.Type, _ bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hashes[v.ResourceID+"/"+string(v.Type)] = v.ContentHash
	return nil
}

func (h *hashStore) SetActive(context.Context, string, bool) error { return nil }

func (h *hashStore) Remove(_ context.Context, id string, types ...domvec.Type) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range types {
		delete(h.hashes, id+"/"+string(t))
	}
	return nil
}

func TestSync_RenameRegeneratesOnlyNameDerivedVectors(t *testing.T) {
	disc, reg := newFakeDiscoverer(), newMemRegistry()
	emb := &countingEmbedder{}
	vec := vectorize.New(emb, &hashStore{hashes: map[string]string{}}, vectorize.Config{}, zap.NewNop())
	svc := New(disc, reg, vec, 1, zap.NewNop())

	disc.set(apis, apiRes(t, "1", "Orders", "order api"))
	if _, err := svc.Sync(context.Background(), ModeFull, nil); err != nil {
		t.Fatal(err)
	}
	emb.texts = nil

	disc.set(apis, apiRes(t, "1", "Orders v2", "order api"))
	rep, err := svc.Sync(context.Background(), ModeFull, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Modified) != 1 {
		t.Fatalf("expected modified, got %+v", rep)
	}
	want := map[string]bool{"Orders v2\norder api": true, "Orders v2": true}
	if len(emb.texts) != 2 {
		t.Fatalf("expected COMPOSITE and NAME re-embedded, got %q", emb.texts)
	}
	for _, txt := range emb.texts {
		if !want[txt] {
			t.Errorf("unexpected embedding of %q", txt)
		}
	}
}
