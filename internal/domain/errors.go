package domain

import "errors"

// Sentinel errors, grouped by the taxonomy the orchestrator branches on:
// validation (fix the input), stale reference (re-quote and retry),
// transient (retry with backoff), state conflict (reconcile with the
// authoritative status).
var (
	// Validation.
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrCurrencyMismatch   = errors.New("currency mismatch")
	ErrUserRequired       = errors.New("user id required")
	ErrOfferRefRequired   = errors.New("offer reference required")
	ErrPassengersRequired = errors.New("at least one passenger required")
	ErrInvalidPassenger   = errors.New("invalid passenger data")
	ErrInfantWithoutAdult = errors.New("each infant requires a distinct adult")
	ErrAmountBelowFloor   = errors.New("amount below processor minimum")

	// Stale reference.
	ErrOfferExpired       = errors.New("offer expired")
	ErrServiceUnavailable = errors.New("ancillary service no longer available")
	ErrHoldLapsed         = errors.New("inventory hold lapsed")
	ErrIntentSuperseded   = errors.New("payment intent superseded by a later change")

	// Transient.
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderTimeout     = errors.New("provider call timed out")

	// State conflict.
	ErrOrderNotFound  = errors.New("order not found")
	ErrStateConflict  = errors.New("order state conflict")
	ErrOrderImmutable = errors.New("order can no longer be modified")
	ErrHoldRefExists  = errors.New("inventory order reference already set")
	ErrIntentExists   = errors.New("payment intent already outstanding")

	// Payment verification.
	ErrPaymentIntentRequired = errors.New("payment intent required")
	ErrPaymentNotSucceeded   = errors.New("payment not successful")
	ErrPaymentOrderMismatch  = errors.New("payment intent does not reference this order")
)
