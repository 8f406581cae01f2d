package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alltrip/orders-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const orderColumns = `
id, user_id, offer_ref, inventory_order_ref, booking_reference,
origin, destination, departure_date, return_date,
passengers, ancillary_services,
base_amount::text, markup_amount::text, total_amount::text, currency,
status, payment_ref, payment_failure, hold_expires_at,
version, created_at, updated_at`

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	passengers, err := json.Marshal(order.Passengers)
	if err != nil {
		return fmt.Errorf("encode passengers: %w", err)
	}
	services, err := json.Marshal(order.Services)
	if err != nil {
		return fmt.Errorf("encode services: %w", err)
	}

	const stmt = `
INSERT INTO orders (
	id, user_id, offer_ref, origin, destination, departure_date, return_date,
	passengers, ancillary_services,
	base_amount, markup_amount, total_amount, currency,
	status, version, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $15)`

	_, err = r.exec(ctx, stmt,
		order.ID,
		order.UserID,
		order.OfferRef,
		order.Itinerary.Origin,
		order.Itinerary.Destination,
		nullableTime(order.Itinerary.DepartureDate),
		order.Itinerary.ReturnDate,
		passengers,
		services,
		order.BaseAmount.Amount.String(),
		order.MarkupAmount.Amount.String(),
		order.TotalAmount.Amount.String(),
		order.TotalAmount.Currency,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return r.getOrder(ctx, id, false)
}

// GetOrderForUpdate locks the row for the duration of the surrounding
// transaction, serializing concurrent transitions on the same order.
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.getOrder(ctx, id, true)
}

func (r *OrderRepository) getOrder(ctx context.Context, id string, forUpdate bool) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (r *OrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.query(ctx, query, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateStatus is a plain compare-and-set transition with no side columns.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, now time.Time) error {
	const stmt = `
UPDATE orders SET status = $3, version = version + 1, updated_at = $4
WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt, id, from, to, now)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflict(ctx, id)
	}
	return nil
}

// SetHeld records the provider hold. The inventory reference is write-once:
// the guard refuses a second write and a partial unique index refuses reuse
// of the same reference on another order.
func (r *OrderRepository) SetHeld(ctx context.Context, id string, from domain.OrderStatus, invRef, bookingRef string, holdExpiresAt *time.Time, now time.Time) error {
	const stmt = `
UPDATE orders
SET status = $3, inventory_order_ref = $4, booking_reference = $5,
    hold_expires_at = $6, version = version + 1, updated_at = $7
WHERE id = $1 AND status = $2 AND inventory_order_ref IS NULL`

	tag, err := r.exec(ctx, stmt, id, from, domain.StatusHeld, invRef, bookingRef, holdExpiresAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reference %s already used", domain.ErrHoldRefExists, invRef)
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("set held: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if ref, err := r.holdRef(ctx, id); err == nil && ref != "" {
			return domain.ErrHoldRefExists
		}
		return r.conflict(ctx, id)
	}
	return nil
}

// SetInventoryRefs records a provider booking made without a status
// change (the confirm path books inventory while already in
// pending_payment). Same write-once guard as SetHeld.
func (r *OrderRepository) SetInventoryRefs(ctx context.Context, id, invRef, bookingRef string, holdExpiresAt *time.Time, now time.Time) error {
	const stmt = `
UPDATE orders
SET inventory_order_ref = $2, booking_reference = $3,
    hold_expires_at = $4, version = version + 1, updated_at = $5
WHERE id = $1 AND inventory_order_ref IS NULL`

	tag, err := r.exec(ctx, stmt, id, invRef, bookingRef, holdExpiresAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reference %s already used", domain.ErrHoldRefExists, invRef)
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("set inventory refs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if ref, err := r.holdRef(ctx, id); err == nil && ref != "" {
			return domain.ErrHoldRefExists
		}
		return r.conflict(ctx, id)
	}
	return nil
}

// SetPaymentRef stores a freshly issued intent reference. Write-once while
// live: a service update nulls the column, after which one new intent may
// be stored again.
func (r *OrderRepository) SetPaymentRef(ctx context.Context, id string, from []domain.OrderStatus, paymentRef string, now time.Time) error {
	const stmt = `
UPDATE orders
SET status = $3, payment_ref = $4, version = version + 1, updated_at = $5
WHERE id = $1 AND status = ANY($2) AND payment_ref IS NULL`

	tag, err := r.exec(ctx, stmt, id, statusStrings(from), domain.StatusPendingPayment, paymentRef, now)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("set payment ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if ref, err := r.paymentRef(ctx, id); err == nil && ref != "" {
			return domain.ErrIntentExists
		}
		return r.conflict(ctx, id)
	}
	return nil
}

// MarkPaid transitions pending_payment -> paid only when the stored intent
// still matches the one that was verified, so a confirmation can never land
// on a total it was not created for.
func (r *OrderRepository) MarkPaid(ctx context.Context, id, paymentRef string, now time.Time) error {
	const stmt = `
UPDATE orders SET status = $4, version = version + 1, updated_at = $3
WHERE id = $1 AND status = $5 AND payment_ref = $2`

	tag, err := r.exec(ctx, stmt, id, paymentRef, now, domain.StatusPaid, domain.StatusPendingPayment)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflict(ctx, id)
	}
	return nil
}

func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, id, reason string, now time.Time) error {
	const stmt = `
UPDATE orders SET status = $3, payment_failure = $2, version = version + 1, updated_at = $4
WHERE id = $1 AND status = $5`

	tag, err := r.exec(ctx, stmt, id, reason, domain.StatusPaymentFailed, now, domain.StatusPendingPayment)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflict(ctx, id)
	}
	return nil
}

// ReplaceServices swaps the ancillary set and the recomputed totals in one
// write that also invalidates any outstanding intent. The version guard
// rejects the write if anything else touched the order in between.
func (r *OrderRepository) ReplaceServices(ctx context.Context, id string, expectedVersion int64, services []domain.AncillaryService, markup, total domain.Money, now time.Time) error {
	encoded, err := json.Marshal(services)
	if err != nil {
		return fmt.Errorf("encode services: %w", err)
	}

	const stmt = `
UPDATE orders
SET ancillary_services = $3, markup_amount = $4, total_amount = $5,
    payment_ref = NULL, version = version + 1, updated_at = $6
WHERE id = $1 AND version = $2 AND status = ANY($7)`

	mutable := statusStrings([]domain.OrderStatus{domain.StatusInitiated, domain.StatusHeld, domain.StatusPendingPayment})
	tag, err := r.exec(ctx, stmt, id, expectedVersion, encoded, markup.Amount.String(), total.Amount.String(), now, mutable)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("replace services: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflict(ctx, id)
	}
	return nil
}

// conflict distinguishes a missing order from a CAS mismatch.
func (r *OrderRepository) conflict(ctx context.Context, id string) error {
	var status string
	err := r.queryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if err == pgx.ErrNoRows {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("check order state: %w", err)
	}
	return fmt.Errorf("%w: current status %s", domain.ErrStateConflict, status)
}

func (r *OrderRepository) holdRef(ctx context.Context, id string) (string, error) {
	var ref *string
	if err := r.queryRow(ctx, `SELECT inventory_order_ref FROM orders WHERE id = $1`, id).Scan(&ref); err != nil {
		return "", err
	}
	if ref == nil {
		return "", nil
	}
	return *ref, nil
}

func (r *OrderRepository) paymentRef(ctx context.Context, id string) (string, error) {
	var ref *string
	if err := r.queryRow(ctx, `SELECT payment_ref FROM orders WHERE id = $1`, id).Scan(&ref); err != nil {
		return "", err
	}
	if ref == nil {
		return "", nil
	}
	return *ref, nil
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o                             domain.Order
		status                        string
		invRef, bookRef, payRef, fail *string
		departure                     *time.Time
		passengersRaw, servicesRaw    []byte
		baseAmt, markupAmt, totalAmt  string
		currency                      string
	)

	err := row.Scan(
		&o.ID, &o.UserID, &o.OfferRef, &invRef, &bookRef,
		&o.Itinerary.Origin, &o.Itinerary.Destination, &departure, &o.Itinerary.ReturnDate,
		&passengersRaw, &servicesRaw,
		&baseAmt, &markupAmt, &totalAmt, &currency,
		&status, &payRef, &fail, &o.HoldExpiresAt,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Status = domain.OrderStatus(status)
	if invRef != nil {
		o.InventoryOrderRef = *invRef
	}
	if bookRef != nil {
		o.BookingReference = *bookRef
	}
	if payRef != nil {
		o.PaymentRef = *payRef
	}
	if fail != nil {
		o.FailureReason = *fail
	}
	if departure != nil {
		o.Itinerary.DepartureDate = *departure
	}

	if err := json.Unmarshal(passengersRaw, &o.Passengers); err != nil {
		return domain.Order{}, fmt.Errorf("decode passengers: %w", err)
	}
	if err := json.Unmarshal(servicesRaw, &o.Services); err != nil {
		return domain.Order{}, fmt.Errorf("decode services: %w", err)
	}

	base, err := decimal.NewFromString(baseAmt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode base amount: %w", err)
	}
	markup, err := decimal.NewFromString(markupAmt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode markup amount: %w", err)
	}
	total, err := decimal.NewFromString(totalAmt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode total amount: %w", err)
	}
	o.BaseAmount = domain.NewMoney(base, currency)
	o.MarkupAmount = domain.NewMoney(markup, currency)
	o.TotalAmount = domain.NewMoney(total, currency)

	return o, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r *OrderRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *OrderRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *OrderRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
