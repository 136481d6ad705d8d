// Package usage keeps rolling per-resource match and selection counters in daily Redis buckets.
package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain"
	domusage "github.com/kailas-cloud/resdex/internal/domain/usage"
)

var keyPrefix = domain.KeyPrefix + "usage:"

type store interface {
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store implements day-bucketed counters (INCRBY + EXPIRE NX).
type Store struct {
	store  store
	window int
	now    func() time.Time
}

// New creates a counter store summing the last windowDays daily buckets.
// Buckets live one day longer than the window.
func New(s store, windowDays int, now func() time.Time) *Store {
	if windowDays <= 0 {
		windowDays = domusage.WindowDays
	}
	if now == nil {
		now = time.Now
	}
	return &Store{store: s, window: windowDays, now: now}
}

func (s *Store) ttl() time.Duration {
	return time.Duration(s.window+1) * 24 * time.Hour
}

func dayKey(id string, c domusage.Counter, day time.Time) string {
	return keyPrefix + id + ":" + string(c) + ":" + day.UTC().Format("20060102")
}

// Incr adds one to today's bucket of counter for each id.
func (s *Store) Incr(ctx context.Context, c domusage.Counter, ids ...string) error {
	today := s.now()
	for _, id := range ids {
		key := dayKey(id, c, today)
		if err := s.store.IncrBy(ctx, key, 1); err != nil {
			return fmt.Errorf("usage INCRBY %s: %w", key, err)
		}
		// NX keeps the first expiry so a bucket never outlives its day by more than the window.
		if err := s.store.Expire(ctx, key, s.ttl(), true); err != nil {
			return fmt.Errorf("usage EXPIRE %s: %w", key, err)
		}
	}
	return nil
}

// Window sums both counters over the rolling window for every id in one MGET.
func (s *Store) Window(ctx context.Context, ids []string) (map[string]domusage.Totals, error) {
	out := make(map[string]domusage.Totals, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	today := s.now()
	perID := 2 * s.window
	keys := make([]string, 0, len(ids)*perID)
	for _, id := range ids {
		for d := 0; d < s.window; d++ {
			day := today.AddDate(0, 0, -d)
			keys = append(keys, dayKey(id, domusage.Matches, day), dayKey(id, domusage.Selections, day))
		}
	}

	vals, err := s.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("usage MGET: %w", err)
	}

	for i, id := range ids {
		var t domusage.Totals
		for j := 0; j < perID && i*perID+j < len(vals); j += 2 {
			t.Matches += parse(vals[i*perID+j])
			t.Selections += parse(vals[i*perID+j+1])
		}
		out[id] = t
	}
	return out, nil
}

func parse(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	n, _ := strconv.ParseInt(string(b), 10, 64)
	return n
}
