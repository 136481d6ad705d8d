package resdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

// Sync reconciles the registry with every configured source table.
func (c *Client) Sync(ctx context.Context) (SyncReport, error) {
	return c.sync(ctx, synchronizer.ModeFull, nil)
}

// SyncTables reconciles only the given tables.
func (c *Client) SyncTables(ctx context.Context, tables ...string) (SyncReport, error) {
	if len(tables) == 0 {
		return SyncReport{}, fmt.Errorf("sync tables: no tables given: %w", ErrInvalidRequest)
	}
	return c.sync(ctx, synchronizer.ModeIncremental, tables)
}

func (c *Client) sync(ctx context.Context, mode synchronizer.Mode, tables []string) (_ SyncReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("sync", start, err) }()

	rep, err := c.syncSvc.Sync(ctx, mode, tables)
	if err != nil {
		return SyncReport{}, fmt.Errorf("sync: %w", err)
	}
	return reportFromDomain(&rep), nil
}
