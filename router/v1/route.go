package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/hyperpay/handler"
)

// Routes registers all API routes
func Routes(r chi.Router, paymentHandler *handler.PaymentHandler) {
	r.Route("/payments/hyperpay", func(r chi.Router) {
		r.Post("/checkout", paymentHandler.CreateCheckout)
		r.Get("/{reference}", paymentHandler.GetTransaction)
		r.Get("/{reference}/logs", paymentHandler.GetGatewayLogs)
	})
}
