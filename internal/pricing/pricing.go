// Package pricing computes the customer-facing total: provider base fare
// plus the platform markup plus selected ancillary services.
package pricing

import (
	"fmt"

	"github.com/alltrip/orders-api/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	markupRate  = decimal.NewFromFloat(0.10)
	markupFloor = decimal.NewFromInt(20)
	markupCap   = decimal.NewFromInt(100)
)

// Quote is the result of one pricing pass.
type Quote struct {
	Base   domain.Money
	Markup domain.Money
	Total  domain.Money
}

// ComputeTotal prices an order from scratch. The markup is 10% of the base
// fare clamped to [20, 100] in the order's currency. Every call recomputes
// the full total from its components; nothing is accumulated between calls,
// so repeated add/remove cycles cannot drift.
func ComputeTotal(base domain.Money, services []domain.AncillaryService) (Quote, error) {
	if !base.IsPositive() {
		return Quote{}, fmt.Errorf("%w: base must be positive, got %s", domain.ErrInvalidAmount, base.Amount)
	}

	markup := base.Amount.Mul(markupRate)
	if markup.LessThan(markupFloor) {
		markup = markupFloor
	}
	if markup.GreaterThan(markupCap) {
		markup = markupCap
	}

	total := domain.NewMoney(base.Amount.Add(markup), base.Currency)
	for _, svc := range services {
		sum, err := total.Add(svc.Price)
		if err != nil {
			return Quote{}, fmt.Errorf("service %s: %w", svc.ID, err)
		}
		total = sum
	}

	return Quote{
		Base:   base,
		Markup: domain.NewMoney(markup, base.Currency),
		Total:  total,
	}, nil
}
