package http

import (
	"context"
	"net/http"

	"github.com/alltrip/orders-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// HoldPlacer is the minimal interface needed to place an inventory hold.
type HoldPlacer interface {
	PlaceHold(ctx context.Context, orderID string) (domain.Order, error)
}

// HandlePlaceHold returns an HTTP handler for booking hold inventory
// against an initiated order.
func HandlePlaceHold(svc HoldPlacer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.PlaceHold(r.Context(), chi.URLParam(r, "orderID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}
