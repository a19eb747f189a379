package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"restaurant_pos/pkg/utils"

	"github.com/lib/pq"
)

const (
	pgChannelPrefix      = "pos_"
	pgMinReconnect       = 10 * time.Second
	pgMaxReconnect       = time.Minute
	pgListenerPingPeriod = 90 * time.Second
)

// PostgresTransport publishes with pg_notify and listens with LISTEN.
type PostgresTransport struct {
	db      *sql.DB
	connStr string
}

// NewPostgresTransport creates a transport on db; connStr is used for the
// dedicated listener connection.
func NewPostgresTransport(db *sql.DB, connStr string) *PostgresTransport {
	return &PostgresTransport{db: db, connStr: connStr}
}

func pgChannel(c Channel) string {
	return pgChannelPrefix + string(c)
}

// Publish sends evt through pg_notify.
func (t *PostgresTransport) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := t.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", pgChannel(evt.Channel), string(body)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", evt.Name, err)
	}
	return nil
}

// Subscribe opens a pq.Listener on every requested channel. A nil notification
// from the listener means the connection was re-established and notifications
// may have been lost, which is surfaced as a Resync event.
func (t *PostgresTransport) Subscribe(ctx context.Context, channels ...Channel) (<-chan Event, error) {
	listener := pq.NewListener(t.connStr, pgMinReconnect, pgMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			utils.LogError(err, "Postgres listener event")
		}
	})
	for _, c := range channels {
		if err := listener.Listen(pgChannel(c)); err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to listen on %s: %w", c, err)
		}
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer listener.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					if !send(ctx, out, Event{Name: Resync, At: time.Now().UTC()}) {
						return
					}
					continue
				}
				evt, err := decode([]byte(n.Extra))
				if err != nil {
					utils.LogError(err, "Postgres listener: malformed payload on "+n.Channel)
					continue
				}
				if !send(ctx, out, evt) {
					return
				}
			case <-time.After(pgListenerPingPeriod):
				go func() {
					if err := listener.Ping(); err != nil {
						utils.LogError(err, "Postgres listener ping failed")
					}
				}()
			}
		}
	}()
	return out, nil
}

// Close is a no-op; the *sql.DB is owned by the caller.
func (t *PostgresTransport) Close() error { return nil }
