package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/jackc/pgx/v5"
)

const (
	channelName    = "entries_changed"
	reconnectDelay = 3 * time.Second
)

// PGListener holds one dedicated pgx connection in LISTEN mode and feeds
// every notification into the broker. Query traffic stays on the regular
// database/sql pool; LISTEN requires its own connection.
type PGListener struct {
	dsn    string
	broker *Broker
	logger logging.Logger
}

func NewPGListener(dsn string, broker *Broker, logger logging.Logger) *PGListener {
	return &PGListener{
		dsn:    dsn,
		broker: broker,
		logger: logger.With("module", "pg_listener"),
	}
}

// Run blocks until ctx is cancelled, reconnecting with a delay whenever the
// listening connection drops.
func (l *PGListener) Run(ctx context.Context) {
	for {
		if err := l.listen(ctx); err != nil {
			l.logger.Error(ctx, "listen connection lost", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *PGListener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+channelName); err != nil {
		return err
	}
	l.logger.Info(ctx, "listening for entry changes", "channel", channelName)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var change Change
		if err := json.Unmarshal([]byte(notification.Payload), &change); err != nil {
			l.logger.Warn(ctx, "malformed notification payload", "payload", notification.Payload)
			continue
		}
		l.broker.Publish(change)
	}
}
