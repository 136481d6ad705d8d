package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domusage "github.com/kailas-cloud/resdex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/resdex/internal/usecase/health"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

// --- Fakes ---

type fakeMatcher struct {
	got     match.Request
	results []match.Result
	err     error
	tokens  int
}

func (f *fakeMatcher) Match(ctx context.Context, req match.Request) ([]match.Result, error) {
	f.got = req
	if f.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(f.tokens)
	}
	return f.results, f.err
}

type fakeSyncer struct {
	mode   synchronizer.Mode
	tables []string
	report synchronizer.Report
	err    error
}

func (f *fakeSyncer) Sync(_ context.Context, mode synchronizer.Mode, tables []string) (synchronizer.Report, error) {
	f.mode, f.tables = mode, tables
	f.report.Mode = mode
	return f.report, f.err
}

type fakeOutcomes struct {
	got domusage.Outcome
	err error
}

func (f *fakeOutcomes) RecordOutcome(_ context.Context, o domusage.Outcome) error {
	f.got = o
	if err := o.Validate(); err != nil {
		return err
	}
	return f.err
}

type fakeHistory struct {
	rows      []match.History
	lastLimit int
	lastQuery string
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]match.History, error) {
	f.lastLimit = limit
	return f.rows, nil
}

func (f *fakeHistory) ByQuery(_ context.Context, query string, limit int) ([]match.History, error) {
	f.lastLimit, f.lastQuery = limit, query
	return f.rows, nil
}

type fakeResources struct {
	items  map[string]resource.Resource
	counts map[resource.Status]int
}

func (f *fakeResources) Get(_ context.Context, id string) (resource.Resource, error) {
	r, ok := f.items[id]
	if !ok {
		return resource.Resource{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeResources) CountByStatus(_ context.Context) (map[resource.Status]int, error) {
	return f.counts, nil
}

type fakeHealth struct {
	report healthuc.Report
}

func (f *fakeHealth) Check(_ context.Context) healthuc.Report { return f.report }

// --- Helpers ---

type testAPI struct {
	matcher   *fakeMatcher
	syncer    *fakeSyncer
	outcomes  *fakeOutcomes
	history   *fakeHistory
	resources *fakeResources
	health    *fakeHealth
	handler   http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	a := &testAPI{
		matcher:   &fakeMatcher{},
		syncer:    &fakeSyncer{},
		outcomes:  &fakeOutcomes{},
		history:   &fakeHistory{},
		resources: &fakeResources{items: map[string]resource.Resource{}},
		health:    &fakeHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
	}
	srv := NewServer(Deps{
		Matcher:   a.matcher,
		Syncer:    a.syncer,
		Outcomes:  a.outcomes,
		History:   a.history,
		Resources: a.resources,
		Health:    a.health,
	}, zap.NewNop())
	a.handler = NewRouter(srv, nil, zap.NewNop())
	return a
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}
