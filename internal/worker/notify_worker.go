package worker

import (
	"context"
	"log"
	"time"

	"github.com/alltrip/orders-api/internal/clock"
	"github.com/alltrip/orders-api/internal/domain"
	"github.com/alltrip/orders-api/internal/storage/postgres"
)

type OutboxStore interface {
	Due(ctx context.Context, now time.Time, limit int) ([]postgres.PendingNotification, error)
	MarkSent(ctx context.Context, id string, now time.Time) error
	RecordFailure(ctx context.Context, id, reason string, nextAttempt time.Time) error
}

type OrderStore interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, now time.Time) error
}

type Notifier interface {
	Notify(ctx context.Context, order domain.Order) error
}

const (
	batchSize    = 50
	baseBackoff  = time.Minute
	maxBackoff   = time.Hour
	notifyWindow = 20 * time.Second
)

// NotifyWorker drains the notification outbox: confirmation emails that
// failed during payment confirmation are retried here with exponential
// backoff until they send or the order leaves the paid state.
type NotifyWorker struct {
	outbox   OutboxStore
	orders   OrderStore
	notifier Notifier
	clock    clock.Clock
	logger   *log.Logger
	interval time.Duration
}

func NewNotifyWorker(outbox OutboxStore, orders OrderStore, notifier Notifier, clk clock.Clock, interval time.Duration, logger *log.Logger) *NotifyWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &NotifyWorker{
		outbox:   outbox,
		orders:   orders,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		interval: interval,
	}
}

// Run polls until the context is cancelled.
func (w *NotifyWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Printf("ERROR: notification outbox sweep: %v", err)
			}
		}
	}
}

// RunOnce processes one batch of due notifications.
func (w *NotifyWorker) RunOnce(ctx context.Context) error {
	now := w.clock.Now()
	due, err := w.outbox.Due(ctx, now, batchSize)
	if err != nil {
		return err
	}

	for _, pending := range due {
		w.process(ctx, pending)
	}
	return nil
}

func (w *NotifyWorker) process(ctx context.Context, pending postgres.PendingNotification) {
	order, err := w.orders.GetOrder(ctx, pending.OrderID)
	if err != nil {
		w.logger.Printf("ERROR: outbox %s: load order %s: %v", pending.ID, pending.OrderID, err)
		w.fail(ctx, pending, err)
		return
	}

	// Orders that moved past paid were already notified; anything else
	// no longer wants a confirmation.
	switch order.Status {
	case domain.StatusPaid:
	case domain.StatusFulfilled:
		w.drop(ctx, pending)
		return
	default:
		w.logger.Printf("outbox %s: order %s is %s, dropping confirmation", pending.ID, order.ID, order.Status)
		w.drop(ctx, pending)
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, notifyWindow)
	err = w.notifier.Notify(notifyCtx, order)
	cancel()
	if err != nil {
		w.logger.Printf("WARN: outbox %s: resend confirmation for order %s failed (attempt %d): %v", pending.ID, order.ID, pending.Attempts, err)
		w.fail(ctx, pending, err)
		return
	}

	w.drop(ctx, pending)
	if err := w.orders.UpdateStatus(ctx, order.ID, domain.StatusPaid, domain.StatusFulfilled, w.clock.Now()); err != nil {
		w.logger.Printf("WARN: order %s notified but not marked fulfilled: %v", order.ID, err)
	}
}

func (w *NotifyWorker) drop(ctx context.Context, pending postgres.PendingNotification) {
	if err := w.outbox.MarkSent(ctx, pending.ID, w.clock.Now()); err != nil {
		w.logger.Printf("ERROR: outbox %s: mark sent: %v", pending.ID, err)
	}
}

func (w *NotifyWorker) fail(ctx context.Context, pending postgres.PendingNotification, cause error) {
	next := w.clock.Now().Add(backoff(pending.Attempts))
	if err := w.outbox.RecordFailure(ctx, pending.ID, cause.Error(), next); err != nil {
		w.logger.Printf("ERROR: outbox %s: record failure: %v", pending.ID, err)
	}
}

func backoff(attempts int) time.Duration {
	d := baseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
