package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/resdex/internal/config"
	dbRedis "github.com/kailas-cloud/resdex/internal/db/redis"
	"github.com/kailas-cloud/resdex/internal/domain/change"
	notifypg "github.com/kailas-cloud/resdex/internal/transport/notify/pg"
	notifyredis "github.com/kailas-cloud/resdex/internal/transport/notify/redis"
)

type publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

func newNotifyCmd() *cobra.Command {
	var recordID string
	cmd := &cobra.Command{
		Use:     "notify <insert|update|delete> <table>",
		Short:   "Publish a change notification on the configured listener channel",
		Example: `  resdex notify update api_definitions --id 17`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := change.Operation(strings.ToUpper(args[0]))
			switch op {
			case change.OpInsert, change.OpUpdate, change.OpDelete:
			default:
				return fmt.Errorf("unknown operation %q", args[0])
			}

			cfg, _, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pub, closeFn, err := newPublisher(cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			ev := change.NewEvent(op, args[1], recordID, time.Now())
			if err := pub.Publish(cmd.Context(), ev.Encode()); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			logger.Info("Notification published",
				zap.String("operation", string(ev.Operation)),
				zap.String("table", ev.SourceTable),
				zap.String("record_id", ev.RecordID))
			return nil
		},
	}
	cmd.Flags().StringVar(&recordID, "id", "", "source record id")
	return cmd
}

func newPublisher(cfg config.Config, logger *zap.Logger) (publisher, func(), error) {
	lc := cfg.Listener
	switch lc.Driver {
	case config.ListenerPostgres:
		return notifypg.New(lc.DSN, lc.Channel, logger.Named("pg")), func() {}, nil
	case config.ListenerRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Database.Addrs,
			Username:   cfg.Database.Username,
			Password:   cfg.Database.Password,
			DB:         cfg.Database.DB,
			ClientName: "resdex-notify",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect registry store: %w", err)
		}
		return notifyredis.New(store, lc.Channel), store.Close, nil
	default:
		return nil, nil, fmt.Errorf("listener driver %q cannot publish", lc.Driver)
	}
}
