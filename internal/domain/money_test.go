package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoney_Add(t *testing.T) {
	t.Parallel()

	t.Run("same currency", func(t *testing.T) {
		a := NewMoney(decimal.NewFromFloat(100.50), "USD")
		b := NewMoney(decimal.NewFromFloat(35), "USD")

		sum, err := a.Add(b)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !sum.Amount.Equal(decimal.NewFromFloat(135.50)) {
			t.Fatalf("expected 135.50, got %s", sum.Amount)
		}
		if sum.Currency != "USD" {
			t.Fatalf("expected USD, got %s", sum.Currency)
		}
	})

	t.Run("mixed currency is an error", func(t *testing.T) {
		a := NewMoney(decimal.NewFromInt(100), "USD")
		b := NewMoney(decimal.NewFromInt(35), "BRL")

		if _, err := a.Add(b); !errors.Is(err, ErrCurrencyMismatch) {
			t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
		}
	})
}

func TestMoneyFromString(t *testing.T) {
	t.Parallel()

	m, err := MoneyFromString("2000.00", "EUR")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !m.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected 2000, got %s", m.Amount)
	}

	if _, err := MoneyFromString("not-a-number", "EUR"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
