package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alltrip/orders-api/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository queues confirmation sends that failed inline so the
// worker can retry them off the payment path.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// PendingNotification is one queued retry.
type PendingNotification struct {
	ID        string
	OrderID   string
	Attempts  int
	LastError string
}

func (r *OutboxRepository) Enqueue(ctx context.Context, id, orderID, reason string, nextAttempt, now time.Time) error {
	const stmt = `
INSERT INTO notification_outbox (id, order_id, attempts, last_error, next_attempt_at, created_at)
VALUES ($1, $2, 1, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, stmt, id, orderID, reason, nextAttempt, now); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Due returns unsent notifications whose next attempt has come.
func (r *OutboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]PendingNotification, error) {
	const query = `
SELECT id, order_id, attempts, COALESCE(last_error, '')
FROM notification_outbox
WHERE sent_at IS NULL AND next_attempt_at <= $1
ORDER BY next_attempt_at
LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due notifications: %w", err)
	}
	defer rows.Close()

	var out []PendingNotification
	for rows.Next() {
		var n PendingNotification
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Attempts, &n.LastError); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id string, now time.Time) error {
	const stmt = `UPDATE notification_outbox SET sent_at = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, stmt, id, now); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

func (r *OutboxRepository) RecordFailure(ctx context.Context, id, reason string, nextAttempt time.Time) error {
	const stmt = `
UPDATE notification_outbox
SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
WHERE id = $1`

	if _, err := r.pool.Exec(ctx, stmt, id, reason, nextAttempt); err != nil {
		return fmt.Errorf("record notification failure: %w", err)
	}
	return nil
}
