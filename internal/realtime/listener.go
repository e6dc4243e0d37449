package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const defaultReconnectDelay = 2 * time.Second

// PgUpstream opens change streams over Postgres LISTEN/NOTIFY. Each table
// has a notify trigger (see migrations/schema.sql) publishing the changed
// row as JSON on a channel named after the table; one dedicated
// connection is held per subscribed key.
type PgUpstream struct {
	dsn            string
	reconnectDelay time.Duration
}

// NewPgUpstream creates an upstream listening on the given database.
func NewPgUpstream(dsn string) *PgUpstream {
	return &PgUpstream{dsn: dsn, reconnectDelay: defaultReconnectDelay}
}

type pgConnection struct {
	cancel context.CancelFunc
}

func (c *pgConnection) Close() error {
	c.cancel()
	return nil
}

// Subscribe starts a listener goroutine for key. The goroutine owns
// reconnection: a dropped connection is reported through onStatus and
// redialed until the subscription is closed.
func (u *PgUpstream) Subscribe(key Key, onEvent func(Event), onStatus func(Status)) (Connection, error) {
	ctx, cancel := context.WithCancel(context.Background())
	go u.run(ctx, key, onEvent, onStatus)
	return &pgConnection{cancel: cancel}, nil
}

func (u *PgUpstream) run(ctx context.Context, key Key, onEvent func(Event), onStatus func(Status)) {
	for {
		if ctx.Err() != nil {
			onStatus(StatusClosed)
			return
		}

		onStatus(StatusConnecting)
		if err := u.listen(ctx, key, onEvent, onStatus); err != nil {
			if ctx.Err() != nil {
				onStatus(StatusClosed)
				return
			}
			log.Warn().Err(err).Stringer("key", key).Msg("Listener connection lost, reconnecting")
			onStatus(StatusErrored)
		}

		select {
		case <-ctx.Done():
			onStatus(StatusClosed)
			return
		case <-time.After(u.reconnectDelay):
		}
	}
}

// listen holds one LISTEN connection until it fails or ctx is cancelled.
func (u *PgUpstream) listen(ctx context.Context, key Key, onEvent func(Event), onStatus func(Status)) error {
	conn, err := pgx.Connect(ctx, u.dsn)
	if err != nil {
		return fmt.Errorf("failed to connect listener: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = conn.Close(closeCtx)
	}()

	channel := pgx.Identifier{key.Table}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", key.Table, err)
	}
	onStatus(StatusSubscribed)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("failed waiting for notification: %w", err)
		}

		payload := []byte(notification.Payload)
		if !matchesFilter(key.Filter, payload) {
			continue
		}
		onEvent(Event{Table: key.Table, Payload: payload})
	}
}

// matchesFilter applies a "column=value" equality filter to a JSON row
// payload. An empty filter matches everything; an unparsable payload
// matches nothing.
func matchesFilter(filter string, payload []byte) bool {
	if filter == "" {
		return true
	}

	column, want, ok := strings.Cut(filter, "=")
	if !ok {
		return false
	}

	var row map[string]any
	if err := json.Unmarshal(payload, &row); err != nil {
		return false
	}

	got, ok := row[column]
	if !ok {
		return false
	}
	return fmt.Sprint(got) == want
}
