package resdex

import (
	"context"

	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domusage "github.com/kailas-cloud/resdex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/resdex/internal/usecase/health"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

// --- matchUseCase mock ---

type mockMatchUC struct {
	matchFn func(ctx context.Context, req match.Request) ([]match.Result, error)
}

func (m *mockMatchUC) Match(ctx context.Context, req match.Request) ([]match.Result, error) {
	return m.matchFn(ctx, req)
}

// --- syncUseCase mock ---

type mockSyncUC struct {
	syncFn func(ctx context.Context, mode synchronizer.Mode, tables []string) (synchronizer.Report, error)
}

func (m *mockSyncUC) Sync(ctx context.Context, mode synchronizer.Mode, tables []string) (synchronizer.Report, error) {
	return m.syncFn(ctx, mode, tables)
}

// --- outcomeUseCase mock ---

type mockOutcomeUC struct {
	got domusage.Outcome
	err error
}

func (m *mockOutcomeUC) RecordOutcome(_ context.Context, o domusage.Outcome) error {
	m.got = o
	return m.err
}

// --- registryReader mock ---

type mockRegistry struct {
	items map[string]resource.Resource
}

func (m *mockRegistry) Get(_ context.Context, id string) (resource.Resource, error) {
	r, ok := m.items[id]
	if !ok {
		return resource.Resource{}, ErrNotFound
	}
	return r, nil
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report {
	return m.report
}

// --- public Embedder mock ---

type mockEmbedder struct {
	result EmbeddingResult
	err    error
	texts  []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	return m.result, m.err
}
