package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourorg/remediation-worker/internal/model"
)

// PostgresQueue delivers job messages through a Postgres table. Claims use
// FOR UPDATE SKIP LOCKED so multiple workers never double-claim a visible
// message; a claimed message that is not deleted within the visibility
// timeout becomes claimable again, which gives at-least-once delivery.
type PostgresQueue struct {
	pool       *pgxpool.Pool
	visibility time.Duration
}

func OpenPostgres(ctx context.Context, url string, visibility time.Duration) (*PostgresQueue, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if visibility <= 0 {
		visibility = 15 * time.Minute
	}
	return &PostgresQueue{pool: pool, visibility: visibility}, nil
}

func (q *PostgresQueue) Ping(ctx context.Context) error {
	return q.pool.Ping(ctx)
}

func (q *PostgresQueue) Close() {
	q.pool.Close()
}

func (q *PostgresQueue) EnsureSchema(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS scan_queue (
  id UUID PRIMARY KEY,
  body JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  claimed_at TIMESTAMPTZ,
  claim_token UUID
);

CREATE INDEX IF NOT EXISTS scan_queue_created_at_idx ON scan_queue (created_at);
`)
	return err
}

func (q *PostgresQueue) Send(ctx context.Context, msg model.JobMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	id := uuid.NewString()
	_, err = q.pool.Exec(ctx, `
		INSERT INTO scan_queue (id, body) VALUES ($1, $2::jsonb)
	`, id, string(body))
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

func (q *PostgresQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, body
		FROM scan_queue
		WHERE claimed_at IS NULL OR claimed_at < now() - $1::interval
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`, q.visibility.String(), max)
	if err != nil {
		return nil, err
	}

	var msgs []Message
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			rows.Close()
			return nil, err
		}
		var jm model.JobMessage
		if err := json.Unmarshal(body, &jm); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode message %s: %w", id, err)
		}
		msgs = append(msgs, Message{ID: id, Body: jm, AckToken: uuid.NewString()})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}

	for _, m := range msgs {
		if _, err := tx.Exec(ctx, `
			UPDATE scan_queue SET claimed_at = now(), claim_token = $2 WHERE id = $1
		`, m.ID, m.AckToken); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Delete acks a claimed message. Deleting a token that was already reclaimed
// by another consumer is a no-op.
func (q *PostgresQueue) Delete(ctx context.Context, ackToken string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM scan_queue WHERE claim_token = $1`, ackToken)
	return err
}

var _ Queue = (*PostgresQueue)(nil)
