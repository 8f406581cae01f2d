package domain

import "time"

// OrderStatus is the closed set of lifecycle states. Transitions outside
// the table below are rejected rather than written.
type OrderStatus string

const (
	StatusInitiated      OrderStatus = "initiated"
	StatusHeld           OrderStatus = "held"
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPaid           OrderStatus = "paid"
	StatusFulfilled      OrderStatus = "fulfilled"
	StatusCancelled      OrderStatus = "cancelled"
	StatusPaymentFailed  OrderStatus = "payment_failed"
	// StatusExpired is observed when the provider-side hold lapses; it is
	// never entered by a local timer.
	StatusExpired OrderStatus = "expired"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusInitiated:      {StatusHeld, StatusPendingPayment, StatusCancelled, StatusExpired},
	StatusHeld:           {StatusPendingPayment, StatusCancelled, StatusExpired},
	StatusPendingPayment: {StatusPaid, StatusPaymentFailed, StatusCancelled, StatusExpired},
	StatusPaid:           {StatusFulfilled},
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Mutable reports whether ancillary services may still change. Once money
// has moved the service list is frozen.
func (s OrderStatus) Mutable() bool {
	switch s {
	case StatusInitiated, StatusHeld, StatusPendingPayment:
		return true
	}
	return false
}

// Itinerary is denormalized display data; the inventory provider's record
// is authoritative.
type Itinerary struct {
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureDate time.Time  `json:"departure_date"`
	ReturnDate    *time.Time `json:"return_date,omitempty"`
}

// Order is one booking attempt. Mutated only by the orchestrator.
type Order struct {
	ID     string
	UserID *string

	OfferRef string
	// InventoryOrderRef is the confirmed hold reference, write-once.
	InventoryOrderRef string
	BookingReference  string

	Itinerary  Itinerary
	Passengers []Passenger
	Services   []AncillaryService

	BaseAmount   Money
	MarkupAmount Money
	TotalAmount  Money

	Status     OrderStatus
	PaymentRef string
	// FailureReason records why the order entered payment_failed.
	FailureReason string

	HoldExpiresAt *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Currency is the order's fixed currency, set at creation.
func (o Order) Currency() string {
	return o.TotalAmount.Currency
}

// PrimaryContact returns the primary passenger's email, if any.
func (o Order) PrimaryContact() string {
	if len(o.Passengers) == 0 {
		return ""
	}
	return o.Passengers[0].Email
}
