package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/alltrip/orders-api/internal/app"
	"github.com/alltrip/orders-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ServiceUpdater is the minimal interface needed to replace an order's
// ancillary services.
type ServiceUpdater interface {
	UpdateServices(ctx context.Context, in app.UpdateServicesInput) (domain.Order, error)
}

// OrderCanceller is the minimal interface needed to cancel an order.
type OrderCanceller interface {
	Cancel(ctx context.Context, orderID string) (domain.Order, error)
}

// HandleUpdateServices returns an HTTP handler that replaces the
// ancillary set and reprices the order. Any outstanding payment intent is
// invalidated; the client must request a new one.
func HandleUpdateServices(svc ServiceUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateServicesRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		services, err := toDomainServices(req.Services)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		order, err := svc.UpdateServices(r.Context(), app.UpdateServicesInput{
			OrderID:  chi.URLParam(r, "orderID"),
			Services: services,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

// HandleCancelOrder returns an HTTP handler for abandoning a pre-payment
// order.
func HandleCancelOrder(svc OrderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.Cancel(r.Context(), chi.URLParam(r, "orderID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

type updateServicesRequest struct {
	Services []serviceRequest `json:"services"`
}
