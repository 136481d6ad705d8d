package listener

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain/change"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

// --- Mocks ---

// session is what one Subscribe call does: deliver payloads, then fail or wait for ctx.
type session struct {
	payloads [][]byte
	err      error
}

type fakeSubscriber struct {
	mu        sync.Mutex
	sessions  []session
	calls     int
	delivered chan struct{}
}

func newFakeSubscriber(sessions ...session) *fakeSubscriber {
	return &fakeSubscriber{sessions: sessions, delivered: make(chan struct{}, 1)}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, handle func([]byte)) error {
	f.mu.Lock()
	var s session
	if f.calls < len(f.sessions) {
		s = f.sessions[f.calls]
	}
	f.calls++
	f.mu.Unlock()

	for _, p := range s.payloads {
		handle(p)
	}
	if s.err != nil {
		return s.err
	}
	select {
	case f.delivered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil
}

func (f *fakeSubscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls [][]string
	modes []synchronizer.Mode
}

func (f *fakeSyncer) Sync(_ context.Context, mode synchronizer.Mode, tables []string) (synchronizer.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tables)
	f.modes = append(f.modes, mode)
	return synchronizer.Report{Mode: mode, Tables: tables}, nil
}

func (f *fakeSyncer) snapshot() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

func payload(op change.Operation, table, id string, at time.Time) []byte {
	return change.NewEvent(op, table, id, at).Encode()
}
