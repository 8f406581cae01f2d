package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/alltrip/orders-api/internal/domain"
	"github.com/shopspring/decimal"
)

func TestMinorUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"120.00", "USD", 12000},
		{"155.50", "USD", 15550},
		{"0.50", "USD", 50},
		{"2100", "EUR", 210000},
		{"1500", "JPY", 1500},
		{"99.999", "USD", 10000},
	}

	for _, tt := range tests {
		m, err := domain.MoneyFromString(tt.amount, tt.currency)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.amount, err)
		}
		got, err := minorUnits(m)
		if err != nil {
			t.Fatalf("%s %s: expected no error, got %v", tt.amount, tt.currency, err)
		}
		if got != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.amount, tt.currency, tt.want, got)
		}
	}

	if _, err := minorUnits(domain.NewMoney(decimal.Zero, "USD")); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
}

func TestStripe_CreateIntent_AmountFloor(t *testing.T) {
	t.Parallel()

	s := NewStripe(Credentials{Default: "sk_test_unused"}, nil)

	// Rejected before any processor call is made.
	_, err := s.CreateIntent(context.Background(), domain.NewMoney(decimal.NewFromFloat(0.30), "USD"), "order-1")
	if !errors.Is(err, domain.ErrAmountBelowFloor) {
		t.Fatalf("expected ErrAmountBelowFloor, got %v", err)
	}
}

func TestStripe_Resolve(t *testing.T) {
	t.Parallel()

	s := NewStripe(Credentials{
		Default: "sk_intl",
		ByCurrency: map[string]string{
			"BRL": "sk_br",
		},
	}, nil)

	region, _ := s.resolve("brl")
	if region != "BRL" {
		t.Fatalf("expected BRL region, got %s", region)
	}
	region, _ = s.resolve("USD")
	if region != "default" {
		t.Fatalf("expected default region, got %s", region)
	}
}
