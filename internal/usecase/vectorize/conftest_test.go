package vectorize

import (
	"context"
	"errors"
	"sync"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domvec "github.com/kailas-cloud/resdex/internal/domain/vector"
)

// --- Mocks ---

type mockEmbedder struct {
	mu    sync.Mutex
	texts []string
	fail  map[string]error // keyed by text
	dim   int
	block bool // wait for ctx cancellation
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return domain.EmbeddingResult{}, ctx.Err()
	}
	if err := m.fail[text]; err != nil {
		return domain.EmbeddingResult{}, err
	}
	dim := m.dim
	if dim == 0 {
		dim = 3
	}
	return domain.EmbeddingResult{Embedding: make([]float32, dim), TotalTokens: 1}, nil
}

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

type memVectors struct {
	vectors  map[string]map[domvec.Type]domvec.Vector
	active   map[string]bool
	hashErr  error
	saveErr  error
	delErr   error
	activeFn func(id string, active bool) error
}

func newMemVectors() *memVectors {
	return &memVectors{
		vectors: make(map[string]map[domvec.Type]domvec.Vector),
		active:  make(map[string]bool),
	}
}

func (m *memVectors) ContentHashes(_ context.Context, id string, types []domvec.Type) (map[domvec.Type]string, error) {
	if m.hashErr != nil {
		return nil, m.hashErr
	}
	out := make(map[domvec.Type]string)
	for _, t := range types {
		if v, ok := m.vectors[id][t]; ok {
			out[t] = v.ContentHash
		}
	}
	return out, nil
}

func (m *memVectors) Save(_ context.Context, v *domvec.Vector, _ resource.Type, active bool) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.vectors[v.ResourceID] == nil {
		m.vectors[v.ResourceID] = make(map[domvec.Type]domvec.Vector)
	}
	m.vectors[v.ResourceID][v.Type] = *v
	m.active[v.ResourceID] = active
	return nil
}

func (m *memVectors) SetActive(_ context.Context, id string, active bool) error {
	if m.activeFn != nil {
		return m.activeFn(id, active)
	}
	m.active[id] = active
	return nil
}

func (m *memVectors) Remove(_ context.Context, id string, types ...domvec.Type) error {
	if m.delErr != nil {
		return m.delErr
	}
	for _, t := range types {
		delete(m.vectors[id], t)
	}
	return nil
}

var errProvider = errors.New("provider down")
