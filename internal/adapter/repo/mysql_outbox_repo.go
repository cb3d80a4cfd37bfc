package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// OutboxEvent is a pending row waiting to be drained to the broker.
type OutboxEvent struct {
	ID      int64  `db:"id"`
	Channel string `db:"channel"`
	Payload []byte `db:"payload"`
}

// MySQLOutboxRepo feeds the publisher poller. Rows are inserted inside the
// settlement transaction by MySQLOrderRepo.
type MySQLOutboxRepo struct{ db *sqlx.DB }

func NewMySQLOutboxRepo(db *sqlx.DB) *MySQLOutboxRepo { return &MySQLOutboxRepo{db: db} }

func (r *MySQLOutboxRepo) FetchPending(ctx context.Context, limit int) ([]OutboxEvent, error) {
	var events []OutboxEvent
	err := r.db.SelectContext(ctx, &events, `
SELECT id, channel, payload
FROM outbox
WHERE status = 'PENDING' AND next_attempt_at <= NOW()
ORDER BY id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select outbox: %w", err)
	}
	return events, nil
}

func (r *MySQLOutboxRepo) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET status = 'SENT' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}

// MarkFailed bumps the retry counter and pushes the next attempt out.
func (r *MySQLOutboxRepo) MarkFailed(ctx context.Context, id int64, backoff time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE outbox
SET retry_count = retry_count + 1, next_attempt_at = DATE_ADD(NOW(), INTERVAL ? SECOND)
WHERE id = ?`, int64(backoff.Seconds()), id)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}
