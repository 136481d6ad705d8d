package matcher

import (
	"context"
	"sync"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
)

// --- Mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.fn != nil {
		return m.fn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

type mockSearcher struct {
	hits  []domvec.Hit
	err   error
	gotK  int
	types []resource.Type
}

func (m *mockSearcher) SearchComposite(_ context.Context, _ []float32, k int, types []resource.Type) ([]domvec.Hit, error) {
	m.gotK, m.types = k, types
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > k {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

type mockReader struct {
	items map[string]resource.Resource
	err   error
}

func (m *mockReader) GetMulti(_ context.Context, ids []string) (map[string]resource.Resource, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]resource.Resource)
	for _, id := range ids {
		if r, ok := m.items[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

type mockUsage struct {
	mu      sync.Mutex
	prefs   map[string]float64
	matched []string
}

func (m *mockUsage) Preferences(_ context.Context, ids []string) map[string]float64 {
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if p, ok := m.prefs[id]; ok {
			out[id] = p
		} else {
			out[id] = match.DefaultUsagePreference
		}
	}
	return out
}

func (m *mockUsage) RecordMatches(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matched = append(m.matched, ids...)
	return nil
}

type mockHistory struct {
	mu   sync.Mutex
	rows []match.History
	err  error
}

func (m *mockHistory) Append(_ context.Context, h *match.History) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, *h)
	return nil
}
