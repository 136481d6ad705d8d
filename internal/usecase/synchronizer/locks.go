package synchronizer

import (
	"context"
	"sort"
	"sync"
)

// tableLocks serializes syncs per source table; later requests queue behind the holder.
type tableLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newTableLocks() *tableLocks {
	return &tableLocks{slots: make(map[string]chan struct{})}
}

func (l *tableLocks) slot(table string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[table]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[table] = ch
	}
	return ch
}

// acquire locks every table in sorted order so overlapping scopes cannot deadlock.
func (l *tableLocks) acquire(ctx context.Context, tables []string) (release func(), err error) {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)

	held := make([]chan struct{}, 0, len(sorted))
	release = func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, t := range sorted {
		ch := l.slot(t)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
