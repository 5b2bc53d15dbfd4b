package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Notifier wraps LISTEN/NOTIFY.  Each saved turn is announced with the
// session id as payload so an operator can follow conversations live.
type Notifier struct {
	DB      *sql.DB
	Channel string
}

// NewNotifier constructs a new Notifier.
func NewNotifier(db *sql.DB, channel string) *Notifier {
	return &Notifier{DB: db, Channel: channel}
}

// Notify sends sessionID on the channel.
func (n *Notifier) Notify(ctx context.Context, sessionID string) error {
	if _, err := n.DB.ExecContext(ctx, "SELECT pg_notify($1, $2)", n.Channel, sessionID); err != nil {
		return fmt.Errorf("notify %s: %w", n.Channel, err)
	}
	return nil
}

// Listen opens a dedicated listener connection and delivers session ids
// until ctx is cancelled, after which the returned channel is closed.
func Listen(ctx context.Context, url, channel string, logger *zap.Logger) (<-chan string, error) {
	listener := pq.NewListener(url, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("listener event", zap.Int("event", int(ev)), zap.Error(err))
			}
		})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer listener.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil after a reconnect; notifications may have been missed.
				if n == nil {
					logger.Info("listener reconnected", zap.String("channel", channel))
					continue
				}
				select {
				case out <- n.Extra:
				case <-ctx.Done():
					return
				}
			case <-time.After(90 * time.Second):
				if err := listener.Ping(); err != nil {
					logger.Warn("listener ping failed", zap.Error(err))
				}
			}
		}
	}()
	return out, nil
}
