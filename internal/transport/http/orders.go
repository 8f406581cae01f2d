package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/alltrip/orders-api/internal/app"
	"github.com/alltrip/orders-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// OrderCreator is the minimal interface needed to create an order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (domain.Order, error)
}

// OrderReader is the minimal interface needed to read orders back.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
}

// HandleCreateOrder returns an HTTP handler for creating orders.
func HandleCreateOrder(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		base, err := domain.MoneyFromString(req.BaseAmount, req.Currency)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		services, err := toDomainServices(req.Services)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		var userID *string
		if req.UserID != "" {
			userID = &req.UserID
		}

		order, err := svc.CreateOrder(r.Context(), app.CreateOrderInput{
			UserID:     userID,
			OfferRef:   req.OfferRef,
			Itinerary:  req.Itinerary,
			Passengers: req.Passengers,
			BaseAmount: base,
			Services:   services,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toOrderResponse(order))
	}
}

// HandleGetOrder returns an HTTP handler for fetching one order.
func HandleGetOrder(svc OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

// HandleListOrders returns an HTTP handler for a user's order history.
func HandleListOrders(svc OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		orders, err := svc.ListOrders(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			out = append(out, toOrderResponse(o))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type createOrderRequest struct {
	UserID     string             `json:"user_id"`
	OfferRef   string             `json:"offer_ref"`
	Itinerary  domain.Itinerary   `json:"itinerary"`
	Passengers []domain.Passenger `json:"passengers"`
	BaseAmount string             `json:"base_amount"`
	Currency   string             `json:"currency"`
	Services   []serviceRequest   `json:"services,omitempty"`
}

type serviceRequest struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func toDomainServices(in []serviceRequest) ([]domain.AncillaryService, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]domain.AncillaryService, 0, len(in))
	for _, s := range in {
		price, err := domain.MoneyFromString(s.Amount, s.Currency)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.AncillaryService{
			ID:    s.ID,
			Kind:  domain.ServiceKind(s.Kind),
			Price: price,
		})
	}
	return out, nil
}

type serviceResponse struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type orderResponse struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id,omitempty"`
	OfferRef         string             `json:"offer_ref"`
	BookingReference string             `json:"booking_reference,omitempty"`
	Itinerary        domain.Itinerary   `json:"itinerary"`
	Passengers       []domain.Passenger `json:"passengers"`
	Services         []serviceResponse  `json:"services,omitempty"`
	BaseAmount       string             `json:"base_amount"`
	MarkupAmount     string             `json:"markup_amount"`
	TotalAmount      string             `json:"total_amount"`
	Currency         string             `json:"currency"`
	Status           string             `json:"status"`
	FailureReason    string             `json:"failure_reason,omitempty"`
	HoldExpiresAt    *time.Time         `json:"hold_expires_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		OfferRef:         o.OfferRef,
		BookingReference: o.BookingReference,
		Itinerary:        o.Itinerary,
		Passengers:       o.Passengers,
		BaseAmount:       o.BaseAmount.Amount.StringFixed(2),
		MarkupAmount:     o.MarkupAmount.Amount.StringFixed(2),
		TotalAmount:      o.TotalAmount.Amount.StringFixed(2),
		Currency:         o.Currency(),
		Status:           string(o.Status),
		FailureReason:    o.FailureReason,
		HoldExpiresAt:    o.HoldExpiresAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.UserID != nil {
		resp.UserID = *o.UserID
	}
	for _, s := range o.Services {
		resp.Services = append(resp.Services, serviceResponse{
			ID:       s.ID,
			Kind:     string(s.Kind),
			Amount:   s.Price.Amount.StringFixed(2),
			Currency: s.Price.Currency,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
