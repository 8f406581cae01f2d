package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/alltrip/orders-api/internal/clock"
	"github.com/alltrip/orders-api/internal/domain"
	"github.com/alltrip/orders-api/internal/inventory"
	"github.com/alltrip/orders-api/internal/payment"
	"github.com/alltrip/orders-api/internal/pricing"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, now time.Time) error
	SetHeld(ctx context.Context, id string, from domain.OrderStatus, invRef, bookingRef string, holdExpiresAt *time.Time, now time.Time) error
	SetInventoryRefs(ctx context.Context, id, invRef, bookingRef string, holdExpiresAt *time.Time, now time.Time) error
	SetPaymentRef(ctx context.Context, id string, from []domain.OrderStatus, paymentRef string, now time.Time) error
	MarkPaid(ctx context.Context, id, paymentRef string, now time.Time) error
	MarkPaymentFailed(ctx context.Context, id, reason string, now time.Time) error
	ReplaceServices(ctx context.Context, id string, expectedVersion int64, services []domain.AncillaryService, markup, total domain.Money, now time.Time) error
}

type InventoryClient interface {
	CreateHold(ctx context.Context, offerRef string, passengers []domain.Passenger, services []domain.AncillaryService) (inventory.HoldResult, error)
	VerifyServices(ctx context.Context, offerRef string, services []domain.AncillaryService) error
}

type PaymentClient interface {
	CreateIntent(ctx context.Context, amount domain.Money, orderID string) (payment.Intent, error)
	VerifyIntent(ctx context.Context, intentRef, currency string) (payment.Verification, error)
}

type Notifier interface {
	Notify(ctx context.Context, order domain.Order) error
}

// NotificationQueue takes confirmation sends that failed inline; the
// outbox worker retries them later.
type NotificationQueue interface {
	Enqueue(ctx context.Context, id, orderID, reason string, nextAttempt, now time.Time) error
}

// Timeouts bound each external call. Timing out is reported distinctly
// from an explicit provider error.
type Timeouts struct {
	Inventory time.Duration
	Payment   time.Duration
	Notify    time.Duration
}

func defaultTimeouts() Timeouts {
	return Timeouts{
		Inventory: 30 * time.Second,
		Payment:   15 * time.Second,
		Notify:    20 * time.Second,
	}
}

const notifyRetryDelay = time.Minute

// OrderService drives the order state machine across the inventory
// provider, the payment processor and the order store.
type OrderService struct {
	repo     OrderRepository
	inv      InventoryClient
	pay      PaymentClient
	notifier Notifier
	queue    NotificationQueue
	clock    clock.Clock
	logger   *log.Logger
	timeouts Timeouts
}

type OrderServiceOption func(*OrderService)

func WithTimeouts(t Timeouts) OrderServiceOption {
	return func(s *OrderService) {
		if t.Inventory > 0 {
			s.timeouts.Inventory = t.Inventory
		}
		if t.Payment > 0 {
			s.timeouts.Payment = t.Payment
		}
		if t.Notify > 0 {
			s.timeouts.Notify = t.Notify
		}
	}
}

func WithLogger(logger *log.Logger) OrderServiceOption {
	return func(s *OrderService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewOrderService(repo OrderRepository, inv InventoryClient, pay PaymentClient, notifier Notifier, queue NotificationQueue, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:     repo,
		inv:      inv,
		pay:      pay,
		notifier: notifier,
		queue:    queue,
		clock:    clk,
		logger:   log.Default(),
		timeouts: defaultTimeouts(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CreateOrderInput struct {
	UserID     *string
	OfferRef   string
	Itinerary  domain.Itinerary
	Passengers []domain.Passenger
	BaseAmount domain.Money
	Services   []domain.AncillaryService
}

// CreateOrder prices the purchase and persists it as initiated. The
// order's currency is fixed here and never changes.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if in.UserID == nil || *in.UserID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	if in.OfferRef == "" {
		return domain.Order{}, domain.ErrOfferRefRequired
	}
	if len(in.Passengers) == 0 {
		return domain.Order{}, domain.ErrPassengersRequired
	}
	if in.Passengers[0].Email == "" {
		return domain.Order{}, fmt.Errorf("%w: primary passenger email required", domain.ErrInvalidPassenger)
	}

	quote, err := pricing.ComputeTotal(in.BaseAmount, in.Services)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		OfferRef:     in.OfferRef,
		Itinerary:    in.Itinerary,
		Passengers:   in.Passengers,
		Services:     in.Services,
		BaseAmount:   quote.Base,
		MarkupAmount: quote.Markup,
		TotalAmount:  quote.Total,
		Status:       domain.StatusInitiated,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// PlaceHold books hold inventory for an initiated order. The provider
// call runs detached from the client's cancellation: once a booking is in
// flight it must complete and be recorded.
func (s *OrderService) PlaceHold(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.CanTransitionTo(domain.StatusHeld) {
		return domain.Order{}, fmt.Errorf("%w: current status %s", domain.ErrStateConflict, order.Status)
	}

	callCtx, cancel := s.detach(ctx, s.timeouts.Inventory)
	defer cancel()

	res, err := s.inv.CreateHold(callCtx, order.OfferRef, order.Passengers, order.Services)
	if err != nil {
		return domain.Order{}, err
	}
	if len(res.DefaultedFields) > 0 {
		s.logger.Printf("WARN: order %s held with defaulted passenger data: %v", order.ID, res.DefaultedFields)
	}
	if !res.TotalAmount.Amount.Equal(order.BaseAmount.Amount) || res.TotalAmount.Currency != order.BaseAmount.Currency {
		s.logger.Printf("WARN: order %s provider total %s differs from quoted base %s", order.ID, res.TotalAmount, order.BaseAmount)
	}

	now := s.clock.Now()
	if err := s.repo.SetHeld(callCtx, order.ID, order.Status, res.OrderRef, res.BookingReference, res.PaymentRequiredBy, now); err != nil {
		// The provider hold exists but we could not record it. Surface
		// loudly: this must be reconciled by an operator.
		s.logger.Printf("ERROR: order %s hold %s created but not recorded: %v", order.ID, res.OrderRef, err)
		return domain.Order{}, err
	}

	return s.repo.GetOrder(callCtx, order.ID)
}

// RequestPaymentIntent issues a payment intent for the order total, scoped
// to the processor account serving the order's currency.
func (s *OrderService) RequestPaymentIntent(ctx context.Context, orderID string) (domain.Order, payment.Intent, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, payment.Intent{}, err
	}

	now := s.clock.Now()
	if lapsed := s.holdLapsed(order, now); lapsed {
		return domain.Order{}, payment.Intent{}, fmt.Errorf("%w: payment was required by %s", domain.ErrHoldLapsed, order.HoldExpiresAt)
	}
	switch order.Status {
	case domain.StatusInitiated, domain.StatusHeld:
	case domain.StatusPendingPayment:
		if order.PaymentRef != "" {
			return domain.Order{}, payment.Intent{}, domain.ErrIntentExists
		}
	default:
		return domain.Order{}, payment.Intent{}, fmt.Errorf("%w: current status %s", domain.ErrStateConflict, order.Status)
	}

	callCtx, cancel := s.detach(ctx, s.timeouts.Payment)
	defer cancel()

	intent, err := s.pay.CreateIntent(callCtx, order.TotalAmount, order.ID)
	if err != nil {
		return domain.Order{}, payment.Intent{}, err
	}

	from := []domain.OrderStatus{domain.StatusInitiated, domain.StatusHeld, domain.StatusPendingPayment}
	if err := s.repo.SetPaymentRef(callCtx, order.ID, from, intent.Ref, s.clock.Now()); err != nil {
		s.logger.Printf("ERROR: order %s intent %s created but not recorded: %v", order.ID, intent.Ref, err)
		return domain.Order{}, payment.Intent{}, err
	}

	updated, err := s.repo.GetOrder(callCtx, order.ID)
	if err != nil {
		return domain.Order{}, payment.Intent{}, err
	}
	return updated, intent, nil
}

type ConfirmPaymentInput struct {
	OrderID   string
	IntentRef string
}

type ConfirmPaymentResult struct {
	Order domain.Order
	// Transitioned is false when a concurrent or repeated confirmation
	// already marked the order paid.
	Transitioned bool
}

// ConfirmPayment verifies the intent against the processor, books the
// inventory hold if one is still missing, then marks the order paid and
// notifies the customer concurrently. A notification failure is queued
// for retry and never reverses the payment.
func (s *OrderService) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (ConfirmPaymentResult, error) {
	order, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return ConfirmPaymentResult{}, err
	}

	if order.Status == domain.StatusPaid || order.Status == domain.StatusFulfilled {
		if in.IntentRef != "" && in.IntentRef == order.PaymentRef {
			return ConfirmPaymentResult{Order: order, Transitioned: false}, nil
		}
		return ConfirmPaymentResult{}, fmt.Errorf("%w: current status %s", domain.ErrStateConflict, order.Status)
	}
	if order.Status != domain.StatusPendingPayment {
		return ConfirmPaymentResult{}, fmt.Errorf("%w: current status %s", domain.ErrStateConflict, order.Status)
	}

	// The observed legacy path allowed marking paid with no intent at
	// all. That is an unauthenticated "mark as paid" and is rejected.
	if in.IntentRef == "" {
		s.logger.Printf("WARN: rejected confirm without payment intent order=%s", order.ID)
		return ConfirmPaymentResult{}, domain.ErrPaymentIntentRequired
	}
	if order.PaymentRef == "" {
		return ConfirmPaymentResult{}, fmt.Errorf("%w: no outstanding intent", domain.ErrIntentSuperseded)
	}
	if order.PaymentRef != in.IntentRef {
		return ConfirmPaymentResult{}, fmt.Errorf("%w: intent %s is no longer current", domain.ErrIntentSuperseded, in.IntentRef)
	}

	callCtx, cancel := s.detach(ctx, s.timeouts.Payment)
	defer cancel()

	verification, err := s.pay.VerifyIntent(callCtx, in.IntentRef, order.Currency())
	if err != nil {
		return ConfirmPaymentResult{}, err
	}
	now := s.clock.Now()
	if verification.OrderID != order.ID {
		reason := fmt.Sprintf("intent %s references order %q", in.IntentRef, verification.OrderID)
		if err := s.repo.MarkPaymentFailed(callCtx, order.ID, reason, now); err != nil {
			s.logger.Printf("ERROR: order %s: record payment mismatch: %v", order.ID, err)
		}
		return ConfirmPaymentResult{}, fmt.Errorf("%w: %s", domain.ErrPaymentOrderMismatch, reason)
	}
	if !verification.Succeeded() {
		reason := fmt.Sprintf("intent %s status %s", in.IntentRef, verification.Status)
		if err := s.repo.MarkPaymentFailed(callCtx, order.ID, reason, now); err != nil {
			s.logger.Printf("ERROR: order %s: record payment failure: %v", order.ID, err)
		}
		return ConfirmPaymentResult{}, fmt.Errorf("%w: %s", domain.ErrPaymentNotSucceeded, reason)
	}

	// Money has moved. Everything below runs detached from the client.
	if order.InventoryOrderRef == "" {
		invCtx, invCancel := s.detach(ctx, s.timeouts.Inventory)
		res, err := s.inv.CreateHold(invCtx, order.OfferRef, order.Passengers, order.Services)
		if err != nil {
			invCancel()
			s.logger.Printf("ERROR: order %s paid but inventory booking failed: %v", order.ID, err)
			return ConfirmPaymentResult{}, err
		}
		if err := s.repo.SetInventoryRefs(invCtx, order.ID, res.OrderRef, res.BookingReference, res.PaymentRequiredBy, s.clock.Now()); err != nil {
			invCancel()
			s.logger.Printf("ERROR: order %s booking %s created but not recorded: %v", order.ID, res.OrderRef, err)
			return ConfirmPaymentResult{}, err
		}
		invCancel()
		order.InventoryOrderRef = res.OrderRef
		order.BookingReference = res.BookingReference
	}

	// Store write and customer notification run concurrently; latency is
	// bounded by the slower of the two, and both outcomes are collected.
	var notifyErr error
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.Go(func() error {
		return s.repo.MarkPaid(gctx, order.ID, order.PaymentRef, s.clock.Now())
	})
	g.Go(func() error {
		notifyCtx, notifyCancel := context.WithTimeout(gctx, s.timeouts.Notify)
		defer notifyCancel()
		notifyErr = s.notifier.Notify(notifyCtx, order)
		return nil
	})
	storeErr := g.Wait()

	if storeErr != nil {
		if errors.Is(storeErr, domain.ErrStateConflict) {
			// A concurrent confirmation won the compare-and-set.
			current, err := s.repo.GetOrder(callCtx, order.ID)
			if err == nil && (current.Status == domain.StatusPaid || current.Status == domain.StatusFulfilled) {
				return ConfirmPaymentResult{Order: current, Transitioned: false}, nil
			}
			return ConfirmPaymentResult{}, storeErr
		}
		// The one intolerable state: charged but not recorded.
		s.logger.Printf("CRITICAL: order %s payment captured but store write failed: %v", order.ID, storeErr)
		return ConfirmPaymentResult{}, storeErr
	}

	if notifyErr != nil {
		s.logger.Printf("WARN: order %s confirmation send failed, queued for retry: %v", order.ID, notifyErr)
		queueCtx, queueCancel := s.detach(ctx, s.timeouts.Notify)
		if err := s.queue.Enqueue(queueCtx, uuid.NewString(), order.ID, notifyErr.Error(), s.clock.Now().Add(notifyRetryDelay), s.clock.Now()); err != nil {
			s.logger.Printf("ERROR: order %s: enqueue notification retry: %v", order.ID, err)
		}
		queueCancel()
	} else {
		if err := s.repo.UpdateStatus(callCtx, order.ID, domain.StatusPaid, domain.StatusFulfilled, s.clock.Now()); err != nil {
			s.logger.Printf("WARN: order %s notified but not marked fulfilled: %v", order.ID, err)
		}
	}

	updated, err := s.repo.GetOrder(callCtx, order.ID)
	if err != nil {
		return ConfirmPaymentResult{}, err
	}
	return ConfirmPaymentResult{Order: updated, Transitioned: true}, nil
}

type UpdateServicesInput struct {
	OrderID  string
	Services []domain.AncillaryService
}

// UpdateServices replaces the ancillary set, reprices the order and
// invalidates any outstanding payment intent in the same write, so a
// stale intent can never be confirmed against the new total.
func (s *OrderService) UpdateServices(ctx context.Context, in UpdateServicesInput) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.Mutable() {
		return domain.Order{}, fmt.Errorf("%w: current status %s", domain.ErrOrderImmutable, order.Status)
	}

	quote, err := pricing.ComputeTotal(order.BaseAmount, in.Services)
	if err != nil {
		return domain.Order{}, err
	}

	if len(in.Services) > 0 {
		verifyCtx, cancel := context.WithTimeout(ctx, s.timeouts.Inventory)
		err = s.inv.VerifyServices(verifyCtx, order.OfferRef, in.Services)
		cancel()
		if err != nil {
			return domain.Order{}, err
		}
	}

	if order.PaymentRef != "" {
		s.logger.Printf("order %s services changed, invalidating intent %s", order.ID, order.PaymentRef)
	}
	if err := s.repo.ReplaceServices(ctx, order.ID, order.Version, in.Services, quote.Markup, quote.Total, s.clock.Now()); err != nil {
		return domain.Order{}, err
	}
	return s.repo.GetOrder(ctx, order.ID)
}

// Cancel abandons a pre-payment order.
func (s *OrderService) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.CanTransitionTo(domain.StatusCancelled) {
		return domain.Order{}, fmt.Errorf("%w: current status %s", domain.ErrStateConflict, order.Status)
	}
	if err := s.repo.UpdateStatus(ctx, order.ID, order.Status, domain.StatusCancelled, s.clock.Now()); err != nil {
		return domain.Order{}, err
	}
	return s.repo.GetOrder(ctx, order.ID)
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	return s.repo.ListOrdersByUser(ctx, userID)
}

// holdLapsed observes a provider-enforced hold deadline; it records the
// lapse but never enforces it ahead of the provider.
func (s *OrderService) holdLapsed(order domain.Order, now time.Time) bool {
	if order.Status != domain.StatusHeld || order.HoldExpiresAt == nil {
		return false
	}
	if order.HoldExpiresAt.After(now) {
		return false
	}
	if err := s.repo.UpdateStatus(context.Background(), order.ID, domain.StatusHeld, domain.StatusExpired, now); err != nil {
		s.logger.Printf("WARN: order %s hold lapsed but not recorded: %v", order.ID, err)
	}
	return true
}

// detach gives provider mutations a context that survives client
// disconnects but still honors the per-call timeout. Abandoning an
// in-flight booking or charge on disconnect risks money moving without a
// record of it.
func (s *OrderService) detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
