package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/hyperpay/handler"
	"github.com/mstgnz/hyperpay/infra/middle"
	v1 "github.com/mstgnz/hyperpay/router/v1"
)

// Routes registers the shopper return routes and the authenticated API
func Routes(r chi.Router, apiKey string, paymentHandler *handler.PaymentHandler) {
	// Return routes for the payment widget (no auth required)
	r.Route("/payment/hyperpay", func(r chi.Router) {
		r.HandleFunc("/return", paymentHandler.HandleReturn)
		r.HandleFunc("/return_mada", paymentHandler.HandleReturnMada)
	})

	// API routes with authentication
	r.Route("/v1", func(r chi.Router) {
		r.Use(middle.AuthMiddleware(apiKey))
		v1.Routes(r, paymentHandler)
	})
}
