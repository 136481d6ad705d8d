// Package redis carries change notifications over a Redis pub/sub channel.
package redis

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/resdex/internal/domain"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = domain.KeyPrefix + "changes"

type pubsub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error
}

// Channel binds the store's pub/sub to one channel.
type Channel struct {
	ps      pubsub
	channel string
}

// New creates a Channel. An empty name selects DefaultChannel.
func New(ps pubsub, channel string) *Channel {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Channel{ps: ps, channel: channel}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.channel }

// Subscribe blocks until ctx is done (nil) or the connection drops (ErrListenerConnectionLost).
func (c *Channel) Subscribe(ctx context.Context, handle func(payload []byte)) error {
	if err := c.ps.Subscribe(ctx, c.channel, handle); err != nil {
		return fmt.Errorf("subscribe %s: %w: %w", c.channel, domain.ErrListenerConnectionLost, err)
	}
	return nil
}

// Publish sends one payload.
func (c *Channel) Publish(ctx context.Context, payload []byte) error {
	if err := c.ps.Publish(ctx, c.channel, payload); err != nil {
		return fmt.Errorf("publish %s: %w", c.channel, err)
	}
	return nil
}
