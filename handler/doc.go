// Package handler provides the HTTP handlers of the HyperPay connector.
//
// The handlers bridge the HTTP layer with hyperpay.PaymentService. Errors
// from the service are mapped to a status code and a customer-safe message
// (hyperpay.UserMessage) inside the infra/response envelope.
//
// # Payment Handler
//
//	paymentHandler := handler.NewPaymentHandler(service, gatewayLogs, validator, statusURL)
//
//	r.Post("/v1/payments/hyperpay/checkout", paymentHandler.CreateCheckout)
//	r.Get("/v1/payments/hyperpay/{reference}", paymentHandler.GetTransaction)
//	r.Get("/v1/payments/hyperpay/{reference}/logs", paymentHandler.GetGatewayLogs)
//
//	// shopper returns from the payment widget
//	r.HandleFunc("/payment/hyperpay/return", paymentHandler.HandleReturn)
//	r.HandleFunc("/payment/hyperpay/return_mada", paymentHandler.HandleReturnMada)
//
// A checkout request:
//
//	POST /v1/payments/hyperpay/checkout
//	Authorization: Bearer your-api-key
//
//	{
//	  "reference": "ORD-2024/0001",
//	  "amount": "150.00",
//	  "currency": "SAR",
//	  "method": "mada",
//	  "customer": {
//	    "name": "Sara Al Qahtani",
//	    "email": "sara@example.com",
//	    "street": "King Fahd Road 12",
//	    "city": "Riyadh",
//	    "postcode": "12271",
//	    "country": "SA"
//	  }
//	}
//
// The return routes never trust a status carried by the redirect. They pass
// the query and form fields to HandleNotification, which fetches the status
// from the gateway, then redirect the shopper to the status page with the
// transaction reference (or an error message).
//
// # Error Mapping
//
//	validation           400  (data.fields lists every invalid field)
//	invalid notification 400
//	not found            404
//	already closed       409
//	gateway failure      502
//	not configured       503
//
// # Health Handler
//
//	healthHandler := handler.NewHealthHandler(db.DB, provider, environment)
//	r.Get("/health", healthHandler.CheckHealth)
//
// The report includes the sqlite ping, the gateway mode and circuit breaker
// state. An open breaker makes the service unhealthy (503).
package handler
