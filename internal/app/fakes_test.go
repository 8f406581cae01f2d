package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alltrip/orders-api/internal/domain"
	"github.com/alltrip/orders-api/internal/inventory"
	"github.com/alltrip/orders-api/internal/payment"
)

// fakeRepo keeps orders in memory and enforces the same guarded writes
// as the Postgres repository, so compare-and-set races behave the same
// way they would against the real store.
type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]domain.Order)}
}

func (r *fakeRepo) CreateOrder(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return fmt.Errorf("duplicate order %s", order.ID)
	}
	r.orders[order.ID] = order
	return nil
}

func (r *fakeRepo) GetOrder(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (r *fakeRepo) ListOrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return r.conflict(o)
	}
	o.Status = to
	r.bump(&o, now)
	return nil
}

func (r *fakeRepo) SetHeld(_ context.Context, id string, from domain.OrderStatus, invRef, bookingRef string, holdExpiresAt *time.Time, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.InventoryOrderRef != "" {
		return domain.ErrHoldRefExists
	}
	if o.Status != from {
		return r.conflict(o)
	}
	o.Status = domain.StatusHeld
	o.InventoryOrderRef = invRef
	o.BookingReference = bookingRef
	o.HoldExpiresAt = holdExpiresAt
	r.bump(&o, now)
	return nil
}

func (r *fakeRepo) SetInventoryRefs(_ context.Context, id, invRef, bookingRef string, holdExpiresAt *time.Time, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.InventoryOrderRef != "" {
		return domain.ErrHoldRefExists
	}
	o.InventoryOrderRef = invRef
	o.BookingReference = bookingRef
	o.HoldExpiresAt = holdExpiresAt
	r.bump(&o, now)
	return nil
}

func (r *fakeRepo) SetPaymentRef(_ context.Context, id string, from []domain.OrderStatus, paymentRef string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.PaymentRef != "" {
		return domain.ErrIntentExists
	}
	allowed := false
	for _, s := range from {
		if o.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return r.conflict(o)
	}
	o.Status = domain.StatusPendingPayment
	o.PaymentRef = paymentRef
	r.bump(&o, now)
	return nil
}

func (r *fakeRepo) MarkPaid(_ context.Context, id, paymentRef string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != domain.StatusPendingPayment || o.PaymentRef != paymentRef {
		return r.conflict(o)
	}
	o.Status = domain.StatusPaid
	r.bump(&o, now)
	return nil
}

func (r *fakeRepo) MarkPaymentFailed(_ context.Context, id, reason string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != domain.StatusPendingPayment {
		return r.conflict(o)
	}
	o.Status = domain.StatusPaymentFailed
	o.FailureReason = reason
	r.bump(&o, now)
	return nil
}

func (r *fakeRepo) ReplaceServices(_ context.Context, id string, expectedVersion int64, services []domain.AncillaryService, markup, total domain.Money, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Version != expectedVersion || !o.Status.Mutable() {
		return r.conflict(o)
	}
	o.Services = services
	o.MarkupAmount = markup
	o.TotalAmount = total
	o.PaymentRef = ""
	r.bump(&o, now)
	return nil
}

func (r *fakeRepo) conflict(o domain.Order) error {
	return fmt.Errorf("%w: current status %s", domain.ErrStateConflict, o.Status)
}

func (r *fakeRepo) bump(o *domain.Order, now time.Time) {
	o.Version++
	o.UpdatedAt = now
	r.orders[o.ID] = *o
}

// setStatus force-writes a status, bypassing transition checks. Test
// setup only.
func (r *fakeRepo) setStatus(id string, status domain.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[id]
	o.Status = status
	r.orders[id] = o
}

type fakeInventory struct {
	mu         sync.Mutex
	holdResult inventory.HoldResult
	holdErr    error
	holdCalls  int
	verifyErr  error
	available  []domain.AncillaryService
}

func (i *fakeInventory) CreateHold(_ context.Context, offerRef string, passengers []domain.Passenger, services []domain.AncillaryService) (inventory.HoldResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.holdCalls++
	if i.holdErr != nil {
		return inventory.HoldResult{}, i.holdErr
	}
	return i.holdResult, nil
}

func (i *fakeInventory) VerifyServices(_ context.Context, offerRef string, services []domain.AncillaryService) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.verifyErr != nil {
		return i.verifyErr
	}
	if i.available == nil {
		return nil
	}
	for _, svc := range services {
		found := false
		for _, a := range i.available {
			if a.ID == svc.ID {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", domain.ErrServiceUnavailable, svc.ID)
		}
	}
	return nil
}

type fakePayment struct {
	mu           sync.Mutex
	intent       payment.Intent
	intentErr    error
	lastAmount   domain.Money
	verification payment.Verification
	verifyErr    error
}

func (p *fakePayment) CreateIntent(_ context.Context, amount domain.Money, orderID string) (payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastAmount = amount
	if p.intentErr != nil {
		return payment.Intent{}, p.intentErr
	}
	return p.intent, nil
}

func (p *fakePayment) VerifyIntent(_ context.Context, intentRef, currency string) (payment.Verification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.verifyErr != nil {
		return payment.Verification{}, p.verifyErr
	}
	return p.verification, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	count int
	err   error
}

func (n *fakeNotifier) Notify(_ context.Context, order domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	return n.err
}

func (n *fakeNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

type queuedNotification struct {
	orderID string
	reason  string
}

type fakeQueue struct {
	mu      sync.Mutex
	entries []queuedNotification
}

func (q *fakeQueue) Enqueue(_ context.Context, id, orderID, reason string, nextAttempt, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, queuedNotification{orderID: orderID, reason: reason})
	return nil
}
