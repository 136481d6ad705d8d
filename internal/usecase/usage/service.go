// Package usage records match outcomes and serves the usage preference signal.
package usage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdex/internal/domain/match"
	domusage "github.com/kailas-cloud/resdex/internal/domain/usage"
)

// Tracker aggregates outcome feedback. All counters are atomic Redis increments,
// so concurrent writers for one resource need no extra locking.
type Tracker struct {
	reg      Registry
	counters Counters
	logger   *zap.Logger
}

// New creates a usage tracker.
func New(reg Registry, counters Counters, logger *zap.Logger) *Tracker {
	return &Tracker{reg: reg, counters: counters, logger: logger}
}

// RecordOutcome applies one piece of caller feedback. Unknown resources yield domain.ErrNotFound.
// Only selected outcomes move the statistics; a rejection is already reflected by the match counter.
func (t *Tracker) RecordOutcome(ctx context.Context, o domusage.Outcome) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if !o.WasSelected {
		if _, err := t.reg.Get(ctx, o.ResourceID); err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}
		return nil
	}

	if err := t.reg.ApplyOutcome(ctx, o.ResourceID, o.Succeeded, o.ResponseTimeMs); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if err := t.counters.Incr(ctx, domusage.Selections, o.ResourceID); err != nil {
		return fmt.Errorf("record selection: %w", err)
	}
	return nil
}

// RecordMatches counts one appearance in match results for each id.
func (t *Tracker) RecordMatches(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := t.counters.Incr(ctx, domusage.Matches, ids...); err != nil {
		return fmt.Errorf("record matches: %w", err)
	}
	return nil
}

// Preference returns the usage preference of one resource.
func (t *Tracker) Preference(ctx context.Context, id string) float64 {
	return t.Preferences(ctx, []string{id})[id]
}

// Preferences returns the usage preference per id. When the counters cannot be
// read every id gets the neutral default.
func (t *Tracker) Preferences(ctx context.Context, ids []string) map[string]float64 {
	out := make(map[string]float64, len(ids))
	totals, err := t.counters.Window(ctx, ids)
	if err != nil {
		t.logger.Warn("usage window unavailable, using neutral preference", zap.Error(err))
	}
	for _, id := range ids {
		if tot, ok := totals[id]; ok {
			out[id] = tot.Preference()
			continue
		}
		out[id] = match.DefaultUsagePreference
	}
	return out
}
