package registry

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/resdex/internal/db"
)

// memStore is an in-memory store: hashes in a map, SearchList filtering on source_table.
type memStore struct {
	hashes    map[string]map[string]string
	indexes   []string
	listErr   error
	listCalls int
}

func newMemStore() *memStore {
	return &memStore{hashes: make(map[string]map[string]string)}
}

func (m *memStore) HSet(_ context.Context, key string, fields map[string]string) error {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i], _ = m.HGetAll(ctx, k)
	}
	return out, nil
}

func (m *memStore) HIncrBy(_ context.Context, key string, deltas map[string]int64) error {
	h := m.hashes[key]
	for f, d := range deltas {
		h[f] = itoa(parseInt(h[f]) + d)
	}
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.hashes[key]
	return ok, nil
}

func (m *memStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	for _, n := range m.indexes {
		if n == def.Name {
			return db.ErrIndexExists
		}
	}
	m.indexes = append(m.indexes, def.Name)
	return nil
}

func (m *memStore) matching(q *db.ListQuery) []string {
	want := map[string]map[string]bool{}
	for _, c := range q.Filter.Clauses() {
		want[c.Field] = map[string]bool{}
		for _, v := range c.Values {
			want[c.Field][v] = true
		}
	}
	var keys []string
	for k, h := range m.hashes {
		if !strings.HasPrefix(k, keyPrefix) {
			continue
		}
		ok := true
		for f, vals := range want {
			if !vals[h[f]] {
				ok = false
			}
		}
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *memStore) SearchList(_ context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	keys := m.matching(q)
	res := &db.SearchResult{Total: len(keys)}
	for i := q.Offset; i < len(keys) && i < q.Offset+q.Limit; i++ {
		res.Entries = append(res.Entries, db.SearchEntry{Key: keys[i], Fields: m.hashes[keys[i]]})
	}
	return res, nil
}

func (m *memStore) SearchCount(_ context.Context, _ string, q *db.ListQuery) (int, error) {
	return len(m.matching(q)), nil
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
