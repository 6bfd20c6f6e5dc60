package notify

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drezzillah-prog/velvet-charms/pkg/contracts"
)

const inboxSchema = `
CREATE TABLE IF NOT EXISTS inbox (
	event_id    TEXT PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS notifications (
	event_id   TEXT PRIMARY KEY,
	order_id   TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL,
	message    TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresInbox struct {
	pool *pgxpool.Pool
}

func NewPostgresInbox(ctx context.Context, pool *pgxpool.Pool) (*PostgresInbox, error) {
	if _, err := pool.Exec(ctx, inboxSchema); err != nil {
		return nil, err
	}
	return &PostgresInbox{pool: pool}, nil
}

// Save claims the event id in the inbox and writes the notification in the
// same transaction.
func (i *PostgresInbox) Save(ctx context.Context, evt contracts.Event, message string) (bool, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return false, err
	}
	tx, err := i.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `INSERT INTO inbox(event_id, received_at)
		VALUES ($1, now()) ON CONFLICT (event_id) DO NOTHING`, evt.EventID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `INSERT INTO notifications(event_id, order_id, type, message, payload)
		VALUES ($1, $2, $3, $4, $5)`, evt.EventID, evt.OrderID, evt.Type, message, payload); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (i *PostgresInbox) Ping(ctx context.Context) error {
	return i.pool.Ping(ctx)
}
