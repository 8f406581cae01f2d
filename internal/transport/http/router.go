package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// OrderAPI is everything the router needs from the order service.
type OrderAPI interface {
	OrderCreator
	OrderReader
	HoldPlacer
	IntentIssuer
	PaymentConfirmer
	ServiceUpdater
	OrderCanceller
}

// NewRouter wires the order endpoints, request logging and CORS.
func NewRouter(svc OrderAPI, allowedOrigins []string, logger *log.Logger) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(func(next http.Handler) http.Handler {
		return RequestLogger(next, logger)
	})

	r.Get("/health", HealthHandler)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", HandleCreateOrder(svc))
		r.Get("/", HandleListOrders(svc))

		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", HandleGetOrder(svc))
			r.Post("/hold", HandlePlaceHold(svc))
			r.Post("/payment-intent", HandleCreatePaymentIntent(svc))
			r.Post("/confirm", HandleConfirmPayment(svc))
			r.Put("/services", HandleUpdateServices(svc))
			r.Post("/cancel", HandleCancelOrder(svc))
		})
	})

	return r
}
