package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alltrip/orders-api/internal/domain"
)

const (
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidAmount       = "invalid_amount"
	codeCurrencyMismatch    = "currency_mismatch"
	codeUserRequired        = "user_required"
	codeOfferRefRequired    = "offer_ref_required"
	codePassengersRequired  = "passengers_required"
	codeInvalidPassenger    = "invalid_passenger"
	codeInfantWithoutAdult  = "infant_without_adult"
	codeAmountBelowFloor    = "amount_below_floor"
	codeOfferExpired        = "offer_expired"
	codeServiceUnavailable  = "service_unavailable"
	codeHoldLapsed          = "hold_lapsed"
	codeIntentSuperseded    = "intent_superseded"
	codeOrderNotFound       = "order_not_found"
	codeStateConflict       = "state_conflict"
	codeOrderImmutable      = "order_immutable"
	codeHoldExists          = "hold_exists"
	codeIntentExists        = "intent_exists"
	codeIntentRequired      = "payment_intent_required"
	codePaymentNotSucceeded = "payment_not_succeeded"
	codePaymentMismatch     = "payment_order_mismatch"
	codeProviderUnavailable = "provider_unavailable"
	codeProviderTimeout     = "provider_timeout"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps sentinel errors onto the wire: validation 400/422,
// stale references 409/410, provider trouble 502/504, state conflicts 409.
// Anything unrecognized is an internal error and the message is withheld.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
	case errors.Is(err, domain.ErrCurrencyMismatch):
		writeError(w, http.StatusBadRequest, codeCurrencyMismatch, err.Error())
	case errors.Is(err, domain.ErrUserRequired):
		writeError(w, http.StatusBadRequest, codeUserRequired, err.Error())
	case errors.Is(err, domain.ErrOfferRefRequired):
		writeError(w, http.StatusBadRequest, codeOfferRefRequired, err.Error())
	case errors.Is(err, domain.ErrPassengersRequired):
		writeError(w, http.StatusBadRequest, codePassengersRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidPassenger):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidPassenger, err.Error())
	case errors.Is(err, domain.ErrInfantWithoutAdult):
		writeError(w, http.StatusUnprocessableEntity, codeInfantWithoutAdult, err.Error())
	case errors.Is(err, domain.ErrAmountBelowFloor):
		writeError(w, http.StatusUnprocessableEntity, codeAmountBelowFloor, err.Error())
	case errors.Is(err, domain.ErrPaymentIntentRequired):
		writeError(w, http.StatusBadRequest, codeIntentRequired, err.Error())
	case errors.Is(err, domain.ErrOfferExpired):
		writeError(w, http.StatusGone, codeOfferExpired, err.Error())
	case errors.Is(err, domain.ErrHoldLapsed):
		writeError(w, http.StatusGone, codeHoldLapsed, err.Error())
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusConflict, codeServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrIntentSuperseded):
		writeError(w, http.StatusConflict, codeIntentSuperseded, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case errors.Is(err, domain.ErrOrderImmutable):
		writeError(w, http.StatusConflict, codeOrderImmutable, err.Error())
	case errors.Is(err, domain.ErrHoldRefExists):
		writeError(w, http.StatusConflict, codeHoldExists, err.Error())
	case errors.Is(err, domain.ErrIntentExists):
		writeError(w, http.StatusConflict, codeIntentExists, err.Error())
	case errors.Is(err, domain.ErrStateConflict):
		writeError(w, http.StatusConflict, codeStateConflict, err.Error())
	case errors.Is(err, domain.ErrPaymentNotSucceeded):
		writeError(w, http.StatusPaymentRequired, codePaymentNotSucceeded, err.Error())
	case errors.Is(err, domain.ErrPaymentOrderMismatch):
		writeError(w, http.StatusConflict, codePaymentMismatch, err.Error())
	case errors.Is(err, domain.ErrProviderTimeout):
		writeError(w, http.StatusGatewayTimeout, codeProviderTimeout, err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, codeProviderUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
