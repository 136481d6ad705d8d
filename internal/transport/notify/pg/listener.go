// Package pg receives change notifications through PostgreSQL LISTEN/NOTIFY.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/kailas-cloud/resdex/internal/domain"
)

const (
	// DefaultChannel is used when no channel is configured.
	DefaultChannel = "resdex_changes"
	closeTimeout   = 5 * time.Second
)

// Listener holds one dedicated connection per Subscribe call.
type Listener struct {
	dsn     string
	channel string
	logger  *zap.Logger
}

// New creates a Listener. An empty channel selects DefaultChannel.
func New(dsn, channel string, logger *zap.Logger) *Listener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Listener{dsn: dsn, channel: channel, logger: logger}
}

// Subscribe connects, issues LISTEN and delivers payloads until ctx is done (nil)
// or the connection fails (ErrListenerConnectionLost).
func (l *Listener) Subscribe(ctx context.Context, handle func(payload []byte)) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return l.lost(ctx, "connect", err)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = conn.Close(cctx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return l.lost(ctx, "listen", err)
	}
	l.logger.Info("Listening for notifications", zap.String("channel", l.channel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return l.lost(ctx, "wait", err)
		}
		handle([]byte(n.Payload))
	}
}

// Publish sends payload with pg_notify on a short-lived connection.
func (l *Listener) Publish(ctx context.Context, payload []byte) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	if _, err := conn.Exec(ctx, "SELECT pg_notify($1, $2)", l.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", l.channel, describe(err))
	}
	return nil
}

func (l *Listener) lost(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("%s %s: %w: %w", op, l.channel, domain.ErrListenerConnectionLost, describe(err))
}

// describe adds the SQLSTATE to server-side errors.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s (SQLSTATE %s): %w", pgErr.Message, pgErr.Code, err)
	}
	return err
}
