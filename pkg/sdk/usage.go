package resdex

import (
	"context"
	"fmt"
	"time"

	domusage "github.com/kailas-cloud/resdex/internal/domain/usage"
)

// RecordOutcome feeds back what happened after acting on a match result.
// It updates the resource's usage statistics and its usage preference.
func (c *Client) RecordOutcome(ctx context.Context, o Outcome) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("outcome", start, err) }()

	if err = c.usageSvc.RecordOutcome(ctx, domusage.Outcome{
		ResourceID:     o.ResourceID,
		WasSelected:    o.Selected,
		Succeeded:      o.Succeeded,
		ResponseTimeMs: o.ResponseTime.Milliseconds(),
	}); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}
