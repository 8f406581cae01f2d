// Package payment wraps the payment processor. Credentials are selected
// per call by the order's currency region; the selection is explicit and
// logged because the wrong account makes payment methods silently vanish
// instead of erroring.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/alltrip/orders-api/internal/domain"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// defaultMinorFloor is the processor's minimum chargeable amount in minor
// units (roughly $0.50).
const defaultMinorFloor = 50

// Credentials maps currency codes to processor secret keys. Currencies not
// listed fall back to the default key.
type Credentials struct {
	Default    string
	ByCurrency map[string]string
}

type Stripe struct {
	creds  Credentials
	logger *log.Logger
}

func NewStripe(creds Credentials, logger *log.Logger) *Stripe {
	if logger == nil {
		logger = log.Default()
	}
	return &Stripe{creds: creds, logger: logger}
}

// Intent is a created-but-unsettled charge attempt.
type Intent struct {
	Ref          string
	ClientSecret string
}

// Verification is the processor's view of an intent, including the order
// id stamped into its metadata at creation.
type Verification struct {
	Ref     string
	Status  string
	OrderID string
}

func (v Verification) Succeeded() bool {
	return v.Status == string(stripe.PaymentIntentStatusSucceeded)
}

// CreateIntent issues a payment intent for the order total, stamped with
// the order id so confirmation can verify it belongs to this order.
func (s *Stripe) CreateIntent(ctx context.Context, amount domain.Money, orderID string) (Intent, error) {
	minor, err := minorUnits(amount)
	if err != nil {
		return Intent{}, err
	}
	if minor < defaultMinorFloor {
		return Intent{}, fmt.Errorf("%w: %d minor units", domain.ErrAmountBelowFloor, minor)
	}

	region, api := s.resolve(amount.Currency)
	s.logger.Printf("payment intent order=%s currency=%s region=%s amount_minor=%d", orderID, amount.Currency, region, minor)

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(strings.ToLower(amount.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", orderID)

	pi, err := api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, mapStripeErr(ctx, err)
	}
	return Intent{Ref: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// VerifyIntent retrieves the intent from the processor account serving the
// given currency and returns its status plus the order id it was created
// for. The caller compares that order id against its own.
func (s *Stripe) VerifyIntent(ctx context.Context, intentRef, currency string) (Verification, error) {
	region, api := s.resolve(currency)
	s.logger.Printf("payment verify intent=%s currency=%s region=%s", intentRef, currency, region)

	pi, err := api.PaymentIntents.Get(intentRef, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return Verification{}, mapStripeErr(ctx, err)
	}
	return Verification{
		Ref:     pi.ID,
		Status:  string(pi.Status),
		OrderID: pi.Metadata["order_id"],
	}, nil
}

// resolve picks the processor account for a currency. A fresh client is
// built per call from injected configuration; nothing is cached across
// requests with different currencies.
func (s *Stripe) resolve(currency string) (string, *client.API) {
	currency = strings.ToUpper(currency)
	key, ok := s.creds.ByCurrency[currency]
	region := currency
	if !ok {
		key = s.creds.Default
		region = "default"
	}
	api := &client.API{}
	api.Init(key, nil)
	return region, api
}

func mapStripeErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrProviderTimeout, err)
	}
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.HTTPStatusCode >= 500 {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return fmt.Errorf("payment processor: %w", err)
}

// zeroDecimal currencies have no minor unit; everything else uses two
// decimal places, matching the processor's contract.
var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
	"KRW": {}, "MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

func minorUnits(m domain.Money) (int64, error) {
	if !m.IsPositive() {
		return 0, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, m.Amount)
	}
	if _, ok := zeroDecimal[strings.ToUpper(m.Currency)]; ok {
		return m.Amount.Round(0).IntPart(), nil
	}
	return m.Amount.Shift(2).Round(0).IntPart(), nil
}
