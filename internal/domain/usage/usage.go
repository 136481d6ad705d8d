// Package usage holds the feedback model that closes the loop from match outcomes to ranking.
package usage

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/match"
)

// WindowDays is the rolling window of the usage preference signal.
const WindowDays = 30

// Counter names a daily bucket.
type Counter string

const (
	// Matches counts how often a resource was returned by the matcher.
	Matches Counter = "matches"
	// Selections counts how often a returned resource was picked by the caller.
	Selections Counter = "selections"
)

// Totals are window sums for one resource.
type Totals struct {
	Matches    int64
	Selections int64
}

// Preference is the usage preference signal for these totals.
func (t Totals) Preference() float64 {
	return match.UsagePreference(t.Selections, t.Matches)
}

// Outcome is the caller's feedback after acting on a match result.
type Outcome struct {
	ResourceID     string
	WasSelected    bool
	Succeeded      bool
	ResponseTimeMs int64
}

// Validate checks caller input.
func (o *Outcome) Validate() error {
	o.ResourceID = strings.TrimSpace(o.ResourceID)
	if o.ResourceID == "" {
		return fmt.Errorf("resource_id is required: %w", domain.ErrInvalidRequest)
	}
	if o.ResponseTimeMs < 0 {
		return fmt.Errorf("response_time_ms must not be negative: %w", domain.ErrInvalidRequest)
	}
	if o.Succeeded && !o.WasSelected {
		return fmt.Errorf("an outcome can only succeed when selected: %w", domain.ErrInvalidRequest)
	}
	return nil
}
