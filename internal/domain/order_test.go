package domain

import "testing"

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{StatusInitiated, StatusHeld, true},
		{StatusInitiated, StatusPendingPayment, true},
		{StatusInitiated, StatusPaid, false},
		{StatusHeld, StatusPendingPayment, true},
		{StatusHeld, StatusPaid, false},
		{StatusPendingPayment, StatusPaid, true},
		{StatusPendingPayment, StatusPaymentFailed, true},
		{StatusPendingPayment, StatusHeld, false},
		{StatusPaid, StatusFulfilled, true},
		{StatusPaid, StatusPendingPayment, false},
		{StatusPaid, StatusCancelled, false},
		{StatusFulfilled, StatusPaid, false},
		{StatusCancelled, StatusInitiated, false},
		{StatusPaymentFailed, StatusPendingPayment, false},
		{StatusExpired, StatusHeld, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	t.Parallel()

	terminal := []OrderStatus{StatusFulfilled, StatusCancelled, StatusPaymentFailed, StatusExpired}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{StatusInitiated, StatusHeld, StatusPendingPayment, StatusPaid} {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}

func TestOrderStatus_Mutable(t *testing.T) {
	t.Parallel()

	for _, s := range []OrderStatus{StatusInitiated, StatusHeld, StatusPendingPayment} {
		if !s.Mutable() {
			t.Errorf("expected %s to allow service changes", s)
		}
	}
	for _, s := range []OrderStatus{StatusPaid, StatusFulfilled, StatusCancelled, StatusPaymentFailed, StatusExpired} {
		if s.Mutable() {
			t.Errorf("expected %s to reject service changes", s)
		}
	}
}
