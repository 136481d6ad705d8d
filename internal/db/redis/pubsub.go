package redis

import (
	"context"
	"errors"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/resdex/internal/db"
)

// Publish sends payload on channel.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	cmd := s.b().Publish().Channel(channel).Message(rueidis.BinaryString(payload)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPublish, Err: err}
	}
	return nil
}

// Subscribe blocks delivering channel messages to fn. It returns nil once ctx
// is cancelled and an error when the subscription connection is lost.
func (s *Store) Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error {
	err := s.client.Receive(ctx, s.b().Subscribe().Channel(channel).Build(), func(msg rueidis.PubSubMessage) {
		fn([]byte(msg.Message))
	})
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		err = errors.New("subscription closed")
	}
	return &db.Error{Op: db.OpSubscribe, Err: err}
}
