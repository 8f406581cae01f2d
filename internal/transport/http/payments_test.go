package http

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/alltrip/orders-api/internal/app"
	"github.com/alltrip/orders-api/internal/domain"
	"github.com/alltrip/orders-api/internal/payment"
)

func TestHandleCreatePaymentIntent(t *testing.T) {
	t.Parallel()

	t.Run("returns client secret once", func(t *testing.T) {
		svc := &stubService{
			intentFn: func(_ context.Context, orderID string) (domain.Order, payment.Intent, error) {
				order := sampleOrder()
				order.Status = domain.StatusPendingPayment
				order.PaymentRef = "pi_1"
				return order, payment.Intent{Ref: "pi_1", ClientSecret: "secret_1"}, nil
			},
		}

		rec := serve(svc, http.MethodPost, "/orders/order-1/payment-intent", "")
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		for _, want := range []string{`"client_secret":"secret_1"`, `"intent_ref":"pi_1"`, `"status":"pending_payment"`} {
			if !strings.Contains(rec.Body.String(), want) {
				t.Fatalf("expected body to contain %s, got %s", want, rec.Body.String())
			}
		}
	})

	t.Run("live intent conflicts", func(t *testing.T) {
		svc := &stubService{
			intentFn: func(_ context.Context, orderID string) (domain.Order, payment.Intent, error) {
				return domain.Order{}, payment.Intent{}, domain.ErrIntentExists
			},
		}

		rec := serve(svc, http.MethodPost, "/orders/order-1/payment-intent", "")
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("lapsed hold is gone", func(t *testing.T) {
		svc := &stubService{
			intentFn: func(_ context.Context, orderID string) (domain.Order, payment.Intent, error) {
				return domain.Order{}, payment.Intent{}, domain.ErrHoldLapsed
			},
		}

		rec := serve(svc, http.MethodPost, "/orders/order-1/payment-intent", "")
		if rec.Code != http.StatusGone {
			t.Fatalf("expected 410, got %d", rec.Code)
		}
	})
}

func TestHandleConfirmPayment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			body:           `{"intent_ref":"pi_1"}`,
			expectedStatus: http.StatusOK,
			expectedSubstr: `"transitioned":true`,
		},
		{
			name:           "missing intent",
			body:           `{"intent_ref":""}`,
			serviceErr:     domain.ErrPaymentIntentRequired,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: `"code":"payment_intent_required"`,
		},
		{
			name:           "superseded intent",
			body:           `{"intent_ref":"pi_old"}`,
			serviceErr:     domain.ErrIntentSuperseded,
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"code":"intent_superseded"`,
		},
		{
			name:           "payment not succeeded",
			body:           `{"intent_ref":"pi_1"}`,
			serviceErr:     domain.ErrPaymentNotSucceeded,
			expectedStatus: http.StatusPaymentRequired,
			expectedSubstr: `"code":"payment_not_succeeded"`,
		},
		{
			name:           "cross-order intent",
			body:           `{"intent_ref":"pi_1"}`,
			serviceErr:     domain.ErrPaymentOrderMismatch,
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"code":"payment_order_mismatch"`,
		},
		{
			name:           "invalid json",
			body:           `{"intent_ref":`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: `"code":"invalid_request_body"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{
				confirmFn: func(_ context.Context, in app.ConfirmPaymentInput) (app.ConfirmPaymentResult, error) {
					if tc.serviceErr != nil {
						return app.ConfirmPaymentResult{}, tc.serviceErr
					}
					order := sampleOrder()
					order.Status = domain.StatusFulfilled
					return app.ConfirmPaymentResult{Order: order, Transitioned: true}, nil
				},
			}

			rec := serve(svc, http.MethodPost, "/orders/order-1/confirm", tc.body)
			if rec.Code != tc.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tc.expectedStatus, rec.Code, rec.Body.String())
			}
			if tc.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tc.expectedSubstr) {
				t.Fatalf("expected body to contain %q, got %s", tc.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleUpdateServices(t *testing.T) {
	t.Parallel()

	t.Run("reprices", func(t *testing.T) {
		svc := &stubService{
			servicesFn: func(_ context.Context, in app.UpdateServicesInput) (domain.Order, error) {
				if len(in.Services) != 1 || in.Services[0].ID != "seat-1" {
					t.Fatalf("unexpected services %+v", in.Services)
				}
				order := sampleOrder()
				order.Services = in.Services
				return order, nil
			},
		}

		body := `{"services":[{"id":"seat-1","kind":"seat","amount":"35.00","currency":"USD"}]}`
		rec := serve(svc, http.MethodPut, "/orders/order-1/services", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("immutable after payment", func(t *testing.T) {
		svc := &stubService{
			servicesFn: func(_ context.Context, in app.UpdateServicesInput) (domain.Order, error) {
				return domain.Order{}, domain.ErrOrderImmutable
			},
		}

		rec := serve(svc, http.MethodPut, "/orders/order-1/services", `{"services":[]}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestHandleCancelOrder(t *testing.T) {
	t.Parallel()

	t.Run("cancels", func(t *testing.T) {
		svc := &stubService{
			cancelFn: func(_ context.Context, orderID string) (domain.Order, error) {
				order := sampleOrder()
				order.Status = domain.StatusCancelled
				return order, nil
			},
		}

		rec := serve(svc, http.MethodPost, "/orders/order-1/cancel", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"status":"cancelled"`) {
			t.Fatalf("expected cancelled, got %s", rec.Body.String())
		}
	})

	t.Run("paid orders cannot cancel", func(t *testing.T) {
		svc := &stubService{
			cancelFn: func(_ context.Context, orderID string) (domain.Order, error) {
				return domain.Order{}, domain.ErrStateConflict
			},
		}

		rec := serve(svc, http.MethodPost, "/orders/order-1/cancel", "")
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}
