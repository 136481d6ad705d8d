package vectorize

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
)

func testResource(t *testing.T) resource.Resource {
	t.Helper()
	r, err := resource.New(resource.TypeAPI, "api_definitions", "1", "Weather",
		"forecast service", []string{"forecast"}, nil,
		resource.Metadata{API: &resource.APIMetadata{BaseURL: "https://weather.example"}})
	if err != nil {
		t.Fatalf("build resource: %v", err)
	}
	return r
}

func TestVectorize_FirstRunEmbedsPlan(t *testing.T) {
	emb := &mockEmbedder{}
	store := newMemVectors()
	svc := New(emb, store, Config{}, zap.NewNop())
	r := testResource(t)

	res := svc.Vectorize(context.Background(), &r)

	if res.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (%v)", res.Status, res.Failed)
	}
	if len(res.Vectorized) != 3 || res.Vectorized[0] != domvec.TypeComposite {
		t.Errorf("unexpected vectorized %v", res.Vectorized)
	}
	v := store.vectors[r.ID][domvec.TypeComposite]
	if v.ContentSnapshot != "Weather\nforecast service\nforecast" || v.ContentHash != domvec.Hash(v.ContentSnapshot) {
		t.Errorf("unexpected composite vector %+v", v)
	}
}

func TestVectorize_UnchangedSkipsEmbedding(t *testing.T) {
	emb := &mockEmbedder{}
	store := newMemVectors()
	svc := New(emb, store, Config{}, zap.NewNop())
	r := testResource(t)

	svc.Vectorize(context.Background(), &r)
	before := emb.calls()

	res := svc.Vectorize(context.Background(), &r)
	if res.Status != StatusSkipped {
		t.Errorf("expected SKIPPED, got %s", res.Status)
	}
	if emb.calls() != before {
		t.Errorf("expected no embedding calls, got %d more", emb.calls()-before)
	}
}

func TestVectorize_OnlyChangedTypesReembedded(t *testing.T) {
	emb := &mockEmbedder{}
	store := newMemVectors()
	svc := New(emb, store, Config{}, zap.NewNop())
	r := testResource(t)
	svc.Vectorize(context.Background(), &r)
	before := emb.calls()

	r.Description = "forecast and alerts"
	res := svc.Vectorize(context.Background(), &r)

	// composite and description change, name does not
	if emb.calls()-before != 2 {
		t.Errorf("expected 2 embedding calls, got %d", emb.calls()-before)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != domvec.TypeName {
		t.Errorf("unexpected skipped %v", res.Skipped)
	}
}

func TestVectorize_SecondaryFailureIsPartial(t *testing.T) {
	emb := &mockEmbedder{fail: map[string]error{"Weather": errProvider}}
	svc := New(emb, newMemVectors(), Config{}, zap.NewNop())
	r := testResource(t)

	res := svc.Vectorize(context.Background(), &r)

	if res.Status != StatusPartial {
		t.Fatalf("expected PARTIAL, got %s", res.Status)
	}
	if !errors.Is(res.Failed[domvec.TypeName], domain.ErrEmbeddingProviderError) {
		t.Errorf("expected provider error for NAME, got %v", res.Failed)
	}
	if res.Err() != nil {
		t.Errorf("composite must have succeeded: %v", res.Err())
	}
}

func TestVectorize_CompositeFailureIsFailed(t *testing.T) {
	emb := &mockEmbedder{fail: map[string]error{"Weather\nforecast service\nforecast": errProvider}}
	svc := New(emb, newMemVectors(), Config{}, zap.NewNop())
	r := testResource(t)

	res := svc.Vectorize(context.Background(), &r)

	if res.Status != StatusFailed || res.Err() == nil {
		t.Fatalf("expected FAILED, got %s", res.Status)
	}
	// the other types are still attempted
	if len(res.Vectorized) != 2 {
		t.Errorf("expected secondary vectors to proceed, got %v", res.Vectorized)
	}
}

func TestVectorize_EmbedTimeout(t *testing.T) {
	emb := &mockEmbedder{block: true}
	svc := New(emb, newMemVectors(), Config{EmbedTimeout: 10 * time.Millisecond}, zap.NewNop())
	r := testResource(t)

	start := time.Now()
	res := svc.Vectorize(context.Background(), &r)

	if res.Status != StatusFailed {
		t.Errorf("expected FAILED on timeout, got %s", res.Status)
	}
	if !errors.Is(res.Err(), context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", res.Err())
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout not applied")
	}
}

func TestVectorize_DimensionMismatch(t *testing.T) {
	emb := &mockEmbedder{dim: 4}
	svc := New(emb, newMemVectors(), Config{Dimensions: 3}, zap.NewNop())
	r := testResource(t)

	res := svc.Vectorize(context.Background(), &r)
	if res.Status != StatusFailed || !errors.Is(res.Err(), domain.ErrEmbeddingProviderError) {
		t.Errorf("expected FAILED with provider error, got %s %v", res.Status, res.Err())
	}
}

func TestVectorize_EmptySecondarySnapshotOmitted(t *testing.T) {
	emb := &mockEmbedder{}
	svc := New(emb, newMemVectors(), Config{}, zap.NewNop())
	r := testResource(t)
	r.Description = ""

	res := svc.Vectorize(context.Background(), &r)
	if res.Status != StatusSuccess || len(res.Vectorized) != 2 {
		t.Errorf("expected COMPOSITE and NAME only, got %s %v", res.Status, res.Vectorized)
	}
}

func TestVectorize_EmptiedSecondarySnapshotRemoved(t *testing.T) {
	emb := &mockEmbedder{}
	store := newMemVectors()
	svc := New(emb, store, Config{}, zap.NewNop())
	r := testResource(t)
	svc.Vectorize(context.Background(), &r)
	if _, ok := store.vectors[r.ID][domvec.TypeDescription]; !ok {
		t.Fatal("description vector not stored")
	}

	r.Description = ""
	res := svc.Vectorize(context.Background(), &r)
	if _, ok := store.vectors[r.ID][domvec.TypeDescription]; ok {
		t.Error("stale description vector kept")
	}
	if len(res.Removed) != 1 || res.Removed[0] != domvec.TypeDescription {
		t.Errorf("removed = %v", res.Removed)
	}
	if res.Status != StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", res.Status)
	}

	r.Description = "forecast service"
	svc.Vectorize(context.Background(), &r)
	store.delErr = errors.New("redis down")
	r.Description = ""
	if res := svc.Vectorize(context.Background(), &r); res.Status != StatusPartial {
		t.Errorf("failed removal should be PARTIAL, got %s", res.Status)
	}
}

func TestVectorize_HashLookupFailureReembeds(t *testing.T) {
	store := newMemVectors()
	store.hashErr = errors.New("redis down")
	svc := New(&mockEmbedder{}, store, Config{}, zap.NewNop())
	r := testResource(t)

	if res := svc.Vectorize(context.Background(), &r); res.Status != StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", res.Status)
	}
}

func TestVectorize_SaveFailure(t *testing.T) {
	store := newMemVectors()
	store.saveErr = errors.New("write failed")
	svc := New(&mockEmbedder{}, store, Config{}, zap.NewNop())
	r := testResource(t)

	if res := svc.Vectorize(context.Background(), &r); res.Status != StatusFailed {
		t.Errorf("expected FAILED, got %s", res.Status)
	}
}

func TestDeactivateReactivate(t *testing.T) {
	store := newMemVectors()
	svc := New(&mockEmbedder{}, store, Config{}, zap.NewNop())

	if err := svc.Deactivate(context.Background(), "api:x:1"); err != nil || store.active["api:x:1"] {
		t.Fatalf("deactivate: err=%v active=%v", err, store.active["api:x:1"])
	}
	if err := svc.Reactivate(context.Background(), "api:x:1"); err != nil || !store.active["api:x:1"] {
		t.Fatalf("reactivate: err=%v active=%v", err, store.active["api:x:1"])
	}

	store.activeFn = func(string, bool) error { return errors.New("boom") }
	if err := svc.Deactivate(context.Background(), "api:x:1"); err == nil {
		t.Error("expected error")
	}
}
