package vector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/resdex/internal/db"
	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
)

type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, keys ...string) error
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchListFn   func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func TestEnsureIndex(t *testing.T) {
	var got *db.IndexDefinition
	s := &mockStore{createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return db.ErrIndexExists
	}}

	err := New(s).EnsureIndex(context.Background(), IndexConfig{Dim: 1024, M: 16, EFConstruct: 200})
	if err != nil {
		t.Fatalf("existing index must not be an error: %v", err)
	}
	vf := got.Fields[len(got.Fields)-1]
	if vf.VectorAlgo != db.VectorHNSW || vf.VectorDim != 1024 || vf.Alias != "vector" {
		t.Errorf("unexpected vector field %+v", vf)
	}
}

func TestEnsureIndex_Flat(t *testing.T) {
	var got *db.IndexDefinition
	s := &mockStore{createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return nil
	}}
	_ = New(s).EnsureIndex(context.Background(), IndexConfig{Dim: 8, Algorithm: db.VectorFlat})
	if vf := got.Fields[len(got.Fields)-1]; vf.VectorAlgo != db.VectorFlat {
		t.Errorf("expected FLAT, got %+v", vf)
	}
}

func TestContentHashes(t *testing.T) {
	s := &mockStore{hgetAllMultiFn: func(_ context.Context, keys []string) ([]map[string]string, error) {
		if keys[0] != "resdex:vector:api:t:1:COMPOSITE" || keys[1] != "resdex:vector:api:t:1:NAME" {
			t.Errorf("unexpected keys %v", keys)
		}
		return []map[string]string{{fieldHash: "abc"}, {}}, nil
	}}

	got, err := New(s).ContentHashes(context.Background(), "api:t:1", []domvec.Type{domvec.TypeComposite, domvec.TypeName})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[domvec.TypeComposite] != "abc" {
		t.Errorf("unexpected hashes %v", got)
	}
}

func TestSave(t *testing.T) {
	var fields map[string]string
	s := &mockStore{hsetFn: func(_ context.Context, key string, f map[string]string) error {
		if key != "resdex:vector:api:t:1:NAME" {
			t.Errorf("key = %s", key)
		}
		fields = f
		return nil
	}}

	v := &domvec.Vector{
		ResourceID: "api:t:1", Type: domvec.TypeName, Embedding: []float32{1, 2},
		ContentSnapshot: "Weather", ContentHash: "h", CreatedAt: time.UnixMilli(5),
	}
	if err := New(s).Save(context.Background(), v, resource.TypeAPI, true); err != nil {
		t.Fatal(err)
	}
	if fields[fieldActive] != "1" || fields[fieldResourceType] != "API" || len(fields[fieldVector]) != 8 {
		t.Errorf("unexpected fields %v", fields)
	}
	if fields[fieldCreatedAt] != "5" {
		t.Errorf("created_at = %s", fields[fieldCreatedAt])
	}
}

func TestSetActive(t *testing.T) {
	var items []db.HashSetItem
	s := &mockStore{
		searchListFn: func(_ context.Context, q *db.ListQuery) (*db.SearchResult, error) {
			if c := q.Filter.Clauses(); len(c) != 1 || c[0].Values[0] != "api:t:1" {
				t.Errorf("unexpected filter %+v", c)
			}
			return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{{Key: "a"}, {Key: "b"}}}, nil
		},
		hsetMultiFn: func(_ context.Context, in []db.HashSetItem) error {
			items = in
			return nil
		},
	}

	if err := New(s).SetActive(context.Background(), "api:t:1", false); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Fields[fieldActive] != "0" {
		t.Errorf("unexpected items %+v", items)
	}
}

func TestRemove(t *testing.T) {
	var deleted []string
	s := &mockStore{delFn: func(_ context.Context, keys ...string) error {
		deleted = keys
		return nil
	}}

	if err := New(s).Remove(context.Background(), "api:t:1", domvec.TypeDescription); err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 1 || deleted[0] != "resdex:vector:api:t:1:DESCRIPTION" {
		t.Errorf("unexpected keys %v", deleted)
	}

	s.delFn = func(context.Context, ...string) error { return errors.New("down") }
	if err := New(s).Remove(context.Background(), "api:t:1"); err != nil {
		t.Errorf("no types must be a no-op, got %v", err)
	}
	if err := New(s).Remove(context.Background(), "api:t:1", domvec.TypeName); err == nil {
		t.Error("expected error")
	}
}

func TestSearchComposite(t *testing.T) {
	s := &mockStore{searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.K != 10 || q.VectorField != "vector" {
			t.Errorf("unexpected query %+v", q)
		}
		c := q.Filter.Clauses()
		if len(c) != 3 || c[0].Values[0] != "COMPOSITE" || c[1].Values[0] != "1" || len(c[2].Values) != 2 {
			t.Errorf("unexpected filter %+v", c)
		}
		return &db.SearchResult{Entries: []db.SearchEntry{
			{Key: "k1", Score: 0.9, Fields: map[string]string{fieldResourceID: "api:t:1"}},
			{Key: "k2", Score: 0.5, Fields: map[string]string{}},
		}}, nil
	}}

	hits, err := New(s).SearchComposite(context.Background(), []float32{1}, 10,
		[]resource.Type{resource.TypeAPI, resource.TypeTool})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ResourceID != "api:t:1" || hits[0].Similarity != 0.9 {
		t.Errorf("unexpected hits %+v", hits)
	}
}

func TestSearchComposite_Failure(t *testing.T) {
	s := &mockStore{searchKNNFn: func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("timeout")
	}}
	_, err := New(s).SearchComposite(context.Background(), []float32{1}, 1, nil)
	if !errors.Is(err, domain.ErrVectorSearchFailed) {
		t.Fatalf("expected ErrVectorSearchFailed, got %v", err)
	}
}
