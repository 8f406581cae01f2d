// Package inventory wraps the flight inventory provider (Duffel air API).
// The adapter is stateless; every call carries the caller's context and
// returns typed errors so the orchestrator can branch between re-quote,
// retry and fix-your-input.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/alltrip/orders-api/internal/domain"
)

const duffelVersion = "v2"

type Duffel struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *log.Logger
}

func NewDuffel(baseURL, token string, logger *log.Logger) *Duffel {
	if logger == nil {
		logger = log.Default()
	}
	return &Duffel{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{},
		logger:  logger,
	}
}

// HoldResult is the provider's confirmation of a hold booking.
type HoldResult struct {
	OrderRef          string
	BookingReference  string
	TotalAmount       domain.Money
	PaymentRequiredBy *time.Time
	// DefaultedFields lists passenger fields filled with last-resort
	// defaults. Non-empty means the booking went through on guessed data
	// and should be treated as a warning, not a clean success.
	DefaultedFields []string
}

// Offer is a provider quote. Advisory only: it may lapse before booking.
type Offer struct {
	Ref               string
	TotalAmount       domain.Money
	ExpiresAt         time.Time
	AvailableServices []domain.AncillaryService
}

// CreateHold books hold inventory for the offer. Infant passengers are
// resolved to distinct adults before the payload is sent; the call is
// rejected locally if infants outnumber adults.
func (d *Duffel) CreateHold(ctx context.Context, offerRef string, passengers []domain.Passenger, services []domain.AncillaryService) (HoldResult, error) {
	if offerRef == "" {
		return HoldResult{}, domain.ErrOfferRefRequired
	}
	payload, defaulted, err := buildOrderPayload(offerRef, passengers, services)
	if err != nil {
		return HoldResult{}, err
	}
	if len(defaulted) > 0 {
		d.logger.Printf("WARN: inventory hold for offer %s using defaulted passenger fields: %v", offerRef, defaulted)
	}

	var resp orderResponse
	if err := d.do(ctx, http.MethodPost, "/air/orders", orderRequest{Data: payload}, &resp); err != nil {
		return HoldResult{}, err
	}

	total, err := domain.MoneyFromString(resp.Data.TotalAmount, resp.Data.TotalCurrency)
	if err != nil {
		return HoldResult{}, fmt.Errorf("parse provider total: %w", err)
	}

	return HoldResult{
		OrderRef:          resp.Data.ID,
		BookingReference:  resp.Data.BookingReference,
		TotalAmount:       total,
		PaymentRequiredBy: resp.Data.PaymentRequiredBy,
		DefaultedFields:   defaulted,
	}, nil
}

// GetOffer retrieves the current quote for an offer, including the
// ancillary services still available on it.
func (d *Duffel) GetOffer(ctx context.Context, offerRef string) (Offer, error) {
	if offerRef == "" {
		return Offer{}, domain.ErrOfferRefRequired
	}

	var resp offerResponse
	path := "/air/offers/" + offerRef + "?return_available_services=true"
	if err := d.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Offer{}, err
	}

	total, err := domain.MoneyFromString(resp.Data.TotalAmount, resp.Data.TotalCurrency)
	if err != nil {
		return Offer{}, fmt.Errorf("parse offer total: %w", err)
	}

	offer := Offer{
		Ref:         resp.Data.ID,
		TotalAmount: total,
		ExpiresAt:   resp.Data.ExpiresAt,
	}
	for _, svc := range resp.Data.AvailableServices {
		price, err := domain.MoneyFromString(svc.TotalAmount, svc.TotalCurrency)
		if err != nil {
			return Offer{}, fmt.Errorf("parse service %s price: %w", svc.ID, err)
		}
		offer.AvailableServices = append(offer.AvailableServices, domain.AncillaryService{
			ID:    svc.ID,
			Kind:  serviceKind(svc.Type),
			Price: price,
		})
	}
	return offer, nil
}

// VerifyServices checks the requested services against what the offer
// still sells at the quoted price. A missing or repriced service surfaces
// as ErrServiceUnavailable so the caller re-quotes instead of silently
// dropping it.
func (d *Duffel) VerifyServices(ctx context.Context, offerRef string, services []domain.AncillaryService) error {
	if len(services) == 0 {
		return nil
	}
	offer, err := d.GetOffer(ctx, offerRef)
	if err != nil {
		return err
	}

	available := make(map[string]domain.Money, len(offer.AvailableServices))
	for _, svc := range offer.AvailableServices {
		available[svc.ID] = svc.Price
	}
	for _, svc := range services {
		price, ok := available[svc.ID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrServiceUnavailable, svc.ID)
		}
		if !price.Amount.Equal(svc.Price.Amount) || price.Currency != svc.Price.Currency {
			return fmt.Errorf("%w: %s repriced from %s to %s", domain.ErrServiceUnavailable, svc.ID, svc.Price, price)
		}
	}
	return nil
}

func (d *Duffel) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Duffel-Version", duffelVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", domain.ErrProviderTimeout, method, path)
		}
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return d.mapError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (d *Duffel) mapError(resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	msg := "provider error"
	code := ""
	kind := ""
	if len(body.Errors) > 0 {
		msg = body.Errors[0].Message
		code = body.Errors[0].Code
		kind = body.Errors[0].Type
	}

	switch {
	case code == "offer_no_longer_available" || code == "offer_request_expired" || code == "expired":
		return fmt.Errorf("%w: %s", domain.ErrOfferExpired, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, msg)
	case kind == "validation_error" || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrInvalidPassenger, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, msg)
	}
}

func serviceKind(providerType string) domain.ServiceKind {
	if providerType == "seat" {
		return domain.ServiceSeat
	}
	return domain.ServiceBaggage
}
