package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/alltrip/orders-api/internal/app"
	"github.com/alltrip/orders-api/internal/domain"
	"github.com/alltrip/orders-api/internal/payment"
	"github.com/go-chi/chi/v5"
)

// IntentIssuer is the minimal interface needed to issue a payment intent.
type IntentIssuer interface {
	RequestPaymentIntent(ctx context.Context, orderID string) (domain.Order, payment.Intent, error)
}

// PaymentConfirmer is the minimal interface needed to confirm a payment.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, in app.ConfirmPaymentInput) (app.ConfirmPaymentResult, error)
}

// HandleCreatePaymentIntent returns an HTTP handler that issues a payment
// intent for the order's current total. The client secret is returned
// once and never persisted.
func HandleCreatePaymentIntent(svc IntentIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, intent, err := svc.RequestPaymentIntent(r.Context(), chi.URLParam(r, "orderID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, paymentIntentResponse{
			Order:        toOrderResponse(order),
			IntentRef:    intent.Ref,
			ClientSecret: intent.ClientSecret,
		})
	}
}

// HandleConfirmPayment returns an HTTP handler that verifies the intent
// with the processor and marks the order paid. Repeat confirmations of an
// already-paid order succeed without side effects.
func HandleConfirmPayment(svc PaymentConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmPaymentRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.ConfirmPayment(r.Context(), app.ConfirmPaymentInput{
			OrderID:   chi.URLParam(r, "orderID"),
			IntentRef: req.IntentRef,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, confirmPaymentResponse{
			Order:        toOrderResponse(res.Order),
			Transitioned: res.Transitioned,
		})
	}
}

type paymentIntentResponse struct {
	Order        orderResponse `json:"order"`
	IntentRef    string        `json:"intent_ref"`
	ClientSecret string        `json:"client_secret"`
}

type confirmPaymentRequest struct {
	IntentRef string `json:"intent_ref"`
}

type confirmPaymentResponse struct {
	Order        orderResponse `json:"order"`
	Transitioned bool          `json:"transitioned"`
}
